package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	incremental "github.com/Thereisnospon/gradle/pkg"
	"github.com/spf13/cobra"
)

type cacheOptions struct {
	entity    string
	inputs    []string
	strategy  string
	dirTrees  []string
	fileTrees []string
}

type cacheResult struct {
	Entity string `json:"entity" yaml:"entity"`
	Key    string `json:"key" yaml:"key"`
	Op     string `json:"op" yaml:"op"`
	Found  bool   `json:"found" yaml:"found"`
}

func addCacheFlags(cmd *cobra.Command, opts *cacheOptions) {
	cmd.Flags().StringVarP(&opts.entity, "entity", "e", "", "identity of the cached unit of work (required)")
	cmd.Flags().StringArrayVar(&opts.inputs, "input", nil, "input root the cache key is derived from (can be repeated)")
	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "", "fingerprinting strategy for the inputs")
	cmd.Flags().StringArrayVar(&opts.dirTrees, "dir", nil, "directory output tree as NAME=PATH (can be repeated)")
	cmd.Flags().StringArrayVar(&opts.fileTrees, "file", nil, "single file output tree as NAME=PATH (can be repeated)")
	cobra.CheckErr(cmd.MarkFlagRequired("entity"))
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Store or restore outputs in the local build cache",
		Long: `Package the output trees of a unit of work into the state directory's
build cache, keyed by the entity name and the fingerprint of its inputs,
or restore them from it.`,
	}

	storeOpts := &cacheOptions{}
	store := &cobra.Command{
		Use:   "store --entity NAME --input PATH [--dir NAME=PATH] [--file NAME=PATH]",
		Short: "Pack output trees into the build cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(func(s *session) error {
				return runCache(cmd.Context(), s, storeOpts, "store", cmd.OutOrStdout())
			})
		},
	}
	addCacheFlags(store, storeOpts)

	restoreOpts := &cacheOptions{}
	restore := &cobra.Command{
		Use:   "restore --entity NAME --input PATH [--dir NAME=PATH] [--file NAME=PATH]",
		Short: "Restore output trees from the build cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(func(s *session) error {
				return runCache(cmd.Context(), s, restoreOpts, "restore", cmd.OutOrStdout())
			})
		},
	}
	addCacheFlags(restore, restoreOpts)

	cmd.AddCommand(store, restore)
	return cmd
}

// parseTrees turns NAME=PATH arguments into output trees
func parseTrees(args []string, treeType incremental.TreeType) ([]incremental.OutputTree, error) {
	trees := make([]incremental.OutputTree, 0, len(args))
	for _, arg := range args {
		name, path, ok := strings.Cut(arg, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid %s tree '%s', expected NAME=PATH", treeType, arg)
		}
		absolutePath, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		trees = append(trees, incremental.OutputTree{Name: name, Type: treeType, Root: absolutePath})
	}
	return trees, nil
}

func (s *session) buildCache() (*incremental.ControlledBuildCacheService, error) {
	local, err := incremental.NewDirectoryBuildCacheService(filepath.Join(s.stateDir, incremental.BuildCacheDir))
	if err != nil {
		return nil, err
	}
	return incremental.NewControlledBuildCacheService(local, s.cfg.GetCacheConfig().MaxFailures), nil
}

func runCache(ctx context.Context, s *session, opts *cacheOptions, op string, w io.Writer) error {
	dirTrees, err := parseTrees(opts.dirTrees, incremental.DirectoryTree)
	if err != nil {
		return err
	}
	fileTrees, err := parseTrees(opts.fileTrees, incremental.FileTree)
	if err != nil {
		return err
	}
	entity, err := incremental.NewOutputEntity(opts.entity, append(dirTrees, fileTrees...)...)
	if err != nil {
		return err
	}

	strategy, err := s.strategy(opts.strategy)
	if err != nil {
		return err
	}
	var inputs []*incremental.FileCollectionFingerprint
	if len(opts.inputs) > 0 {
		fingerprint, err := fingerprintRoots(ctx, s, opts.inputs, strategy)
		if err != nil {
			return err
		}
		inputs = append(inputs, fingerprint)
	}
	key, err := incremental.CacheKeyFor(entity.Identity(), s.algorithm, inputs...)
	if err != nil {
		return err
	}

	service, err := s.buildCache()
	if err != nil {
		return err
	}
	defer service.Close()

	result := cacheResult{Entity: entity.Identity(), Key: key.String(), Op: op}
	switch op {
	case "store":
		if err := incremental.StoreEntity(service, key, entity, incremental.TarEntityPacker{}); err != nil {
			return err
		}
		result.Found = !service.Disabled()
	default:
		found, err := incremental.LoadEntity(service, key, entity, incremental.TarEntityPacker{})
		if err != nil {
			return err
		}
		result.Found = found
	}

	if s.format() != "human" {
		return writeStructured(w, s.format(), result)
	}
	switch {
	case op == "store" && result.Found:
		fmt.Fprintf(w, "Stored %s under %s\n", entity.DisplayName(), shortHash(result.Key))
	case op == "store":
		fmt.Fprintf(w, "Build cache disabled, %s not stored\n", entity.DisplayName())
	case result.Found:
		fmt.Fprintf(w, "Restored %s from %s\n", entity.DisplayName(), shortHash(result.Key))
	default:
		fmt.Fprintf(w, "No cache entry for %s (%s)\n", entity.DisplayName(), shortHash(result.Key))
	}
	return nil
}
