package main

import (
	"context"

	incremental "github.com/Thereisnospon/gradle/pkg"
	"github.com/spf13/cobra"
)

func newFingerprintCmd() *cobra.Command {
	var strategyName string

	cmd := &cobra.Command{
		Use:   "fingerprint PATH...",
		Short: "Print the fingerprint of a file collection",
		Long: `Snapshot the given roots and print their fingerprint with the chosen
path sensitivity strategy, followed by the hash of the whole collection.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				strategy, err := s.strategy(strategyName)
				if err != nil {
					return err
				}
				fingerprint, err := fingerprintRoots(cmd.Context(), s, args, strategy)
				if err != nil {
					return err
				}
				view, err := newFingerprintView(fingerprint, s.algorithm)
				if err != nil {
					return err
				}
				return printFingerprint(cmd.OutOrStdout(), s.format(), view)
			})
		},
	}
	cmd.Flags().StringVarP(&strategyName, "strategy", "s", "", "fingerprinting strategy (absolute|relative|ignored|classpath)")
	return cmd
}

// fingerprintRoots snapshots the roots concurrently and projects them with strategy
func fingerprintRoots(ctx context.Context, s *session, roots []string, strategy incremental.FingerprintingStrategy) (*incremental.FileCollectionFingerprint, error) {
	fingerprinter, err := s.fingerprinter()
	if err != nil {
		return nil, err
	}
	snapshots, err := snapshotRoots(ctx, fingerprinter, roots, s)
	if err != nil {
		return nil, err
	}
	fingerprint := strategy.CollectFingerprints(snapshots)
	incremental.VerboseLog(2, "fingerprinted %d roots with %s strategy: %d entries", len(roots), strategy.Identifier(), fingerprint.Len())
	return fingerprint, nil
}
