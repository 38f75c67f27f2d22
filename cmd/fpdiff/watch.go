package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	incremental "github.com/Thereisnospon/gradle/pkg"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const defaultWatchDelay = 500 * time.Millisecond

func newWatchCmd() *cobra.Command {
	opts := &diffOptions{}
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "watch --name NAME PATH...",
		Short: "Report changes whenever files under the roots change",
		Long: `Run diff once, then again each time file events under the roots settle
for the debounce delay. Stops on SIGINT or SIGTERM.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				opts.limit = -1
			}
			return withSession(func(s *session) error {
				return runWatch(cmd.Context(), s, args, opts, delay, cmd.OutOrStdout())
			})
		},
	}
	addDiffFlags(cmd, opts)
	cmd.Flags().DurationVar(&delay, "delay", defaultWatchDelay, "debounce delay after the last file event")
	return cmd
}

func runWatch(ctx context.Context, s *session, roots []string, opts *diffOptions, delay time.Duration, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	stateDir, err := filepath.Abs(s.stateDir)
	if err != nil {
		return err
	}
	for _, root := range roots {
		if err := addWatchTree(watcher, root, stateDir); err != nil {
			return err
		}
	}

	if _, err := runDiff(ctx, s, roots, opts, w); err != nil {
		return err
	}

	debounce := time.NewTimer(delay)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.shutdown:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if isWithin(event.Name, stateDir) {
				continue
			}
			incremental.DebugLog("watch", "%s %s", event.Op, event.Name)
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addWatchTree(watcher, event.Name, stateDir); err != nil {
						incremental.VerboseLog(1, "failed to watch %s: %v", event.Name, err)
					}
				}
			}
			debounce.Reset(delay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "fpdiff: watch error: %v\n", err)
		case <-debounce.C:
			if _, err := runDiff(ctx, s, roots, opts, w); err != nil {
				if s.stopFlag.Load() {
					return nil
				}
				return err
			}
		}
	}
}

// addWatchTree watches root and every directory below it, skipping the
// state directory. A file root is watched through its parent directory.
func addWatchTree(watcher *fsnotify.Watcher, root, stateDir string) error {
	absolutePath, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(absolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			return watcher.Add(filepath.Dir(absolutePath))
		}
		return err
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(absolutePath))
	}

	return filepath.WalkDir(absolutePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if isWithin(path, stateDir) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
