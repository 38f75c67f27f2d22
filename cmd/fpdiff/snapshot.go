package main

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	incremental "github.com/Thereisnospon/gradle/pkg"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newSnapshotCmd() *cobra.Command {
	var tree bool

	cmd := &cobra.Command{
		Use:   "snapshot PATH...",
		Short: "Print the content hashes of files and directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				fingerprinter, err := s.fingerprinter()
				if err != nil {
					return err
				}
				snapshots, err := snapshotRoots(cmd.Context(), fingerprinter, args, s)
				if err != nil {
					return err
				}
				return printSnapshots(cmd.OutOrStdout(), s.format(), snapshots, tree)
			})
		},
	}
	cmd.Flags().BoolVar(&tree, "tree", false, "print every file and directory, not just the roots")
	return cmd
}

// snapshotRoots snapshots each root on its own goroutine and returns the
// snapshots in root order
func snapshotRoots(ctx context.Context, fingerprinter *incremental.FileCollectionFingerprinter, roots []string, s *session) ([]incremental.FileSystemSnapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	snapshots := make([]incremental.FileSystemSnapshot, len(roots))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.NumCPU())
	for i, root := range roots {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			result, err := fingerprinter.Snapshot([]string{root}, s.stopFlag)
			if err != nil {
				return err
			}
			snapshots[i] = result[0]
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

type locationView struct {
	Path     string         `json:"path" yaml:"path"`
	Type     string         `json:"type" yaml:"type"`
	Hash     string         `json:"hash" yaml:"hash"`
	Children []locationView `json:"children,omitempty" yaml:"children,omitempty"`
}

func newLocationView(location incremental.FileSystemLocationSnapshot, tree bool) locationView {
	view := locationView{
		Path: location.AbsolutePath(),
		Type: location.Type().String(),
		Hash: location.Hash().String(),
	}
	if directory, ok := location.(*incremental.DirectorySnapshot); ok && tree {
		for _, child := range directory.Children() {
			view.Children = append(view.Children, newLocationView(child, tree))
		}
	}
	return view
}

// treePrinter writes one indented line per visited location
type treePrinter struct {
	w     io.Writer
	depth int
}

func (p *treePrinter) line(location incremental.FileSystemLocationSnapshot) {
	fmt.Fprintf(p.w, "%s%s %-9s %s\n", strings.Repeat("  ", p.depth), shortHash(location.Hash().String()), location.Type(), location.Name())
}

func (p *treePrinter) PreVisitDirectory(directory *incremental.DirectorySnapshot) bool {
	p.line(directory)
	p.depth++
	return true
}

func (p *treePrinter) VisitFile(location incremental.FileSystemLocationSnapshot) {
	p.line(location)
}

func (p *treePrinter) PostVisitDirectory(*incremental.DirectorySnapshot) {
	p.depth--
}

func printSnapshots(w io.Writer, format string, snapshots []incremental.FileSystemSnapshot, tree bool) error {
	if format != "human" {
		views := make([]locationView, 0, len(snapshots))
		for _, snapshot := range snapshots {
			for _, location := range incremental.RootLocations(snapshot) {
				views = append(views, newLocationView(location, tree))
			}
		}
		return writeStructured(w, format, views)
	}

	if tree {
		for _, snapshot := range snapshots {
			snapshot.Accept(&treePrinter{w: w})
		}
		return nil
	}

	table := newTable(w, "Type", "Hash", "Path")
	for _, snapshot := range snapshots {
		for _, location := range incremental.RootLocations(snapshot) {
			table.Append([]string{location.Type().String(), location.Hash().String(), location.AbsolutePath()})
		}
	}
	table.Render()
	return nil
}
