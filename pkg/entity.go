package incremental

import (
	"fmt"
	"os"
	"path/filepath"
)

// TreeType tells whether an output tree is a whole directory or one file
type TreeType int

const (
	DirectoryTree TreeType = iota
	FileTree
)

func (t TreeType) String() string {
	switch t {
	case DirectoryTree:
		return "directory"
	case FileTree:
		return "file"
	default:
		return "unknown"
	}
}

// CacheableTreeVisitor receives the named trees of an entity. root is empty
// when the tree has no location.
type CacheableTreeVisitor func(name string, treeType TreeType, root string) error

// CacheableEntity is the unit stored in and restored from the build cache
type CacheableEntity interface {
	Identity() string
	DisplayName() string
	VisitTrees(visitor CacheableTreeVisitor) error
}

// OutputTree is one named tree of an OutputEntity
type OutputTree struct {
	Name string
	Type TreeType
	Root string
}

// OutputEntity is a CacheableEntity with a fixed list of trees
type OutputEntity struct {
	identity string
	trees    []OutputTree
}

// NewOutputEntity creates an entity. Tree names must be unique.
func NewOutputEntity(identity string, trees ...OutputTree) (*OutputEntity, error) {
	seen := make(map[string]bool, len(trees))
	for _, tree := range trees {
		if seen[tree.Name] {
			return nil, contractErrorf("duplicate output tree name '%s' in %s", tree.Name, identity)
		}
		seen[tree.Name] = true
	}
	return &OutputEntity{identity: identity, trees: trees}, nil
}

func (e *OutputEntity) Identity() string {
	return e.identity
}

func (e *OutputEntity) DisplayName() string {
	return fmt.Sprintf("entity '%s'", e.identity)
}

// VisitTrees visits the trees in declaration order
func (e *OutputEntity) VisitTrees(visitor CacheableTreeVisitor) error {
	for _, tree := range e.trees {
		if err := visitor(tree.Name, tree.Type, tree.Root); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDirectoryForTree prepares root before a tree is restored: a
// directory tree ends up as an existing, empty directory and a file tree
// has its parent directory created and any old file removed.
func EnsureDirectoryForTree(treeType TreeType, root string) error {
	switch treeType {
	case DirectoryTree:
		created, err := MakeDirectory(root)
		if err != nil {
			return err
		}
		if !created {
			return cleanDirectory(root)
		}
		return nil
	case FileTree:
		created, err := MakeDirectory(filepath.Dir(root))
		if err != nil {
			return err
		}
		if !created {
			if err := os.RemoveAll(root); err != nil {
				return fmt.Errorf("failed to remove %s: %w", root, err)
			}
		}
		return nil
	default:
		return contractErrorf("unknown tree type %d", treeType)
	}
}

// MakeDirectory creates target, replacing a file in its place. It returns
// false if target already was a directory.
func MakeDirectory(target string) (bool, error) {
	info, err := os.Stat(target)
	switch {
	case err == nil && info.IsDir():
		return false, nil
	case err == nil:
		if err := os.Remove(target); err != nil {
			return false, fmt.Errorf("failed to remove file %s: %w", target, err)
		}
	case !os.IsNotExist(err):
		return false, fmt.Errorf("failed to stat %s: %w", target, err)
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return false, fmt.Errorf("failed to create directory %s: %w", target, err)
	}
	return true, nil
}

func cleanDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to clean %s: %w", dir, err)
		}
	}
	return nil
}
