package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	incremental "github.com/Thereisnospon/gradle/pkg"
	"github.com/spf13/cobra"
)

type diffOptions struct {
	name     string
	strategy string
	title    string
	noAdded  bool
	limit    int
	dryRun   bool
	unified  bool
}

func addDiffFlags(cmd *cobra.Command, opts *diffOptions) {
	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "name the fingerprint is stored under (required)")
	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "", "fingerprinting strategy (absolute|relative|ignored|classpath)")
	cmd.Flags().StringVarP(&opts.title, "title", "t", "Input", "property title used in change messages")
	cmd.Flags().BoolVar(&opts.noAdded, "no-added", false, "do not report added files")
	cmd.Flags().IntVarP(&opts.limit, "limit", "l", 0, "report at most this many changes (0 = unlimited, default from config)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "do not store the current fingerprint")
	cmd.Flags().BoolVarP(&opts.unified, "unified", "u", false, "also print a unified diff of the fingerprint entries")
	cobra.CheckErr(cmd.MarkFlagRequired("name"))
}

func newDiffCmd() *cobra.Command {
	opts := &diffOptions{}

	cmd := &cobra.Command{
		Use:   "diff --name NAME PATH...",
		Short: "Report changes since the fingerprint stored under NAME",
		Long: `Fingerprint the given roots, compare the result with the fingerprint
stored under NAME by the previous run and print the added, removed and
modified files. The current fingerprint is then stored under NAME.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				opts.limit = -1
			}
			return withSession(func(s *session) error {
				_, err := runDiff(cmd.Context(), s, args, opts, cmd.OutOrStdout())
				return err
			})
		},
	}
	addDiffFlags(cmd, opts)
	return cmd
}

// runDiff fingerprints roots, reports the changes since the stored
// fingerprint and stores the current one unless dryRun is set.
// A negative limit uses the configured maximum.
func runDiff(ctx context.Context, s *session, roots []string, opts *diffOptions, w io.Writer) (*incremental.StatusResult, error) {
	strategy, err := s.strategy(opts.strategy)
	if err != nil {
		return nil, err
	}
	store, err := s.fingerprintStore()
	if err != nil {
		return nil, err
	}

	current, err := fingerprintRoots(ctx, s, roots, strategy)
	if err != nil {
		return nil, err
	}
	previous, found, err := store.Get(opts.name)
	if err != nil {
		return nil, err
	}
	if !found {
		incremental.VerboseLog(1, "no previous fingerprint stored under '%s'", opts.name)
		previous = nil
	}

	fingerprintConfig := s.cfg.GetFingerprintConfig()
	includeAdded := fingerprintConfig.IncludeAdded && !opts.noAdded
	limit := opts.limit
	if limit < 0 {
		limit = s.cfg.GetChangesConfig().MaxReported
	}

	result, err := incremental.Status(current, previous, opts.title, includeAdded, limit)
	if errors.Is(err, incremental.ErrStrategyMismatch) {
		fmt.Fprintf(os.Stderr, "fpdiff: %v; comparing against an empty fingerprint\n", err)
		previous = nil
		result, err = incremental.Status(current, nil, opts.title, includeAdded, limit)
	}
	if err != nil {
		return nil, err
	}

	if err := printStatus(w, s.format(), result); err != nil {
		return nil, err
	}
	if opts.unified && s.format() == "human" {
		diff, err := unifiedDiff(opts.name, previous, current)
		if err != nil {
			return nil, fmt.Errorf("failed to render unified diff: %w", err)
		}
		fmt.Fprint(w, diff)
	}

	if opts.dryRun {
		incremental.VerboseLog(1, "dry run: fingerprint '%s' not stored", opts.name)
		return result, nil
	}
	if err := store.Put(opts.name, current); err != nil {
		return nil, fmt.Errorf("failed to store fingerprint '%s': %w", opts.name, err)
	}
	return result, nil
}
