package incremental

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const treeEntryPrefix = "tree-"

// TarEntityPacker packs the trees of a CacheableEntity into a tar stream.
// A file tree is stored as "tree-<name>", a directory tree as
// "tree-<name>/" followed by its contents in name order. Absent trees are
// not stored and are removed again on unpack.
type TarEntityPacker struct{}

// Pack writes the entity's trees to w and returns the number of files written
func (TarEntityPacker) Pack(entity CacheableEntity, w io.Writer) (int, error) {
	defer VerboseEnter()()
	tw := tar.NewWriter(w)
	files := 0

	err := entity.VisitTrees(func(name string, treeType TreeType, root string) error {
		if root == "" {
			return nil
		}
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				DebugLog("packer", "tree %s of %s is absent", name, entity.DisplayName())
				return nil
			}
			return fmt.Errorf("failed to stat tree %s: %w", name, err)
		}

		switch treeType {
		case FileTree:
			if info.IsDir() {
				return contractErrorf("file tree '%s' of %s is a directory: %s", name, entity.DisplayName(), root)
			}
			files++
			return writeTarFile(tw, treeEntryPrefix+name, root, info)
		case DirectoryTree:
			if !info.IsDir() {
				return contractErrorf("directory tree '%s' of %s is not a directory: %s", name, entity.DisplayName(), root)
			}
			if err := writeTarDir(tw, treeEntryPrefix+name+"/", info); err != nil {
				return err
			}
			visitor := &packingVisitor{tw: tw, prefix: treeEntryPrefix + name + "/"}
			tree := NewDirectoryFileTree(root, nil)
			if err := tree.Visit(visitor, nil); err != nil {
				return err
			}
			files += visitor.files
			return nil
		default:
			return contractErrorf("unknown tree type %d", treeType)
		}
	})
	if err != nil {
		return files, err
	}
	if err := tw.Close(); err != nil {
		return files, fmt.Errorf("failed to finish archive: %w", err)
	}
	return files, nil
}

type packingVisitor struct {
	tw     *tar.Writer
	prefix string
	files  int
}

func (v *packingVisitor) IsReproducibleFileOrder() bool {
	return true
}

func (v *packingVisitor) VisitDir(details *FileVisitDetails) error {
	info, err := os.Stat(details.File)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", details.File, err)
	}
	return writeTarDir(v.tw, v.prefix+details.Path()+"/", info)
}

func (v *packingVisitor) VisitFile(details *FileVisitDetails) error {
	info, err := os.Stat(details.File)
	if err != nil {
		if os.IsNotExist(err) {
			VerboseLog(1, "skipping '%s': target does not exist", details.File)
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", details.File, err)
	}
	v.files++
	return writeTarFile(v.tw, v.prefix+details.Path(), details.File, info)
}

func writeTarDir(tw *tar.Writer, name string, info os.FileInfo) error {
	header := &tar.Header{
		Typeflag: tar.TypeDir,
		Name:     name,
		Mode:     int64(info.Mode().Perm()),
		ModTime:  info.ModTime().Truncate(time.Second),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}

func writeTarFile(tw *tar.Writer, name, path string, info os.FileInfo) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     int64(info.Mode().Perm()),
		Size:     info.Size(),
		ModTime:  info.ModTime().Truncate(time.Second),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("failed to archive %s: %w", path, err)
	}
	return nil
}

// Unpack restores the entity's trees from r, replacing what is on disk,
// and returns the number of files restored
func (TarEntityPacker) Unpack(entity CacheableEntity, r io.Reader) (int, error) {
	defer VerboseEnter()()
	trees := make(map[string]OutputTree)
	err := entity.VisitTrees(func(name string, treeType TreeType, root string) error {
		if root == "" {
			return nil
		}
		trees[name] = OutputTree{Name: name, Type: treeType, Root: root}
		return EnsureDirectoryForTree(treeType, root)
	})
	if err != nil {
		return 0, err
	}

	restored := make(map[string]bool)
	files := 0
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return files, fmt.Errorf("failed to read archive: %w", err)
		}

		treeName, relativePath, err := splitTreeEntry(header.Name)
		if err != nil {
			return files, err
		}
		tree, ok := trees[treeName]
		if !ok {
			return files, fmt.Errorf("archive entry %s belongs to unknown tree '%s'", header.Name, treeName)
		}
		restored[treeName] = true

		target := tree.Root
		if relativePath != "" {
			target, err = resolveInsideRoot(tree.Root, relativePath)
			if err != nil {
				return files, err
			}
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return files, fmt.Errorf("failed to create %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := unpackFile(tr, target, header); err != nil {
				return files, err
			}
			files++
		default:
			return files, fmt.Errorf("unsupported archive entry type %c for %s", header.Typeflag, header.Name)
		}
	}

	for name, tree := range trees {
		if restored[name] {
			continue
		}
		if err := os.RemoveAll(tree.Root); err != nil {
			return files, fmt.Errorf("failed to remove absent tree %s: %w", name, err)
		}
	}
	return files, nil
}

// splitTreeEntry splits "tree-<name>[/<path>]" into the tree name and the
// path inside the tree
func splitTreeEntry(entry string) (string, string, error) {
	if !strings.HasPrefix(entry, treeEntryPrefix) {
		return "", "", fmt.Errorf("unexpected archive entry %s", entry)
	}
	name, relativePath, _ := strings.Cut(strings.TrimPrefix(entry, treeEntryPrefix), "/")
	return name, strings.TrimSuffix(relativePath, "/"), nil
}

func resolveInsideRoot(root, relativePath string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(relativePath))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %s escapes %s", relativePath, root)
	}
	return target, nil
}

func unpackFile(r io.Reader, target string, header *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode).Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return fmt.Errorf("failed to restore %s: %w", target, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to restore %s: %w", target, err)
	}
	return os.Chtimes(target, header.ModTime, header.ModTime)
}

// StoreEntity packs entity into the build cache under key
func StoreEntity(service BuildCacheService, key BuildCacheKey, entity CacheableEntity, packer TarEntityPacker) error {
	return service.Store(key, func(w io.Writer) error {
		files, err := packer.Pack(entity, w)
		if err == nil {
			VerboseLog(2, "stored %s under %s (%d files)", entity.DisplayName(), key, files)
		}
		return err
	})
}

// LoadEntity restores entity from the build cache. It returns false on a miss.
func LoadEntity(service BuildCacheService, key BuildCacheKey, entity CacheableEntity, packer TarEntityPacker) (bool, error) {
	return service.Load(key, func(r io.Reader) error {
		files, err := packer.Unpack(entity, r)
		if err == nil {
			VerboseLog(2, "restored %s from %s (%d files)", entity.DisplayName(), key, files)
		}
		return err
	})
}
