package main

import (
	"fmt"
	"sort"

	incremental "github.com/Thereisnospon/gradle/pkg"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the state directory's configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(func(s *session) error {
				values := s.cfg.Values()
				if s.format() != "human" {
					return writeStructured(cmd.OutOrStdout(), s.format(), values)
				}

				keys := make([]string, 0, len(values))
				for key := range values {
					keys = append(keys, key)
				}
				sort.Strings(keys)

				table := newTable(cmd.OutOrStdout(), "Key", "Value")
				for _, key := range keys {
					table.Append([]string{key, values[key]})
				}
				table.Render()
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a configuration value",
		Long: `Store a configuration value given as section.key or as a short key,
e.g. "fingerprint.strategy relative" or "max_reported 50".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			// Reload so command line overrides are not written back.
			cfg, err := incremental.LoadConfig(s.stateDir)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			return nil
		},
	})

	return cmd
}
