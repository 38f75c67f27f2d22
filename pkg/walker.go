package incremental

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
)

// FileVisitDetails describes one entry found by a DirectoryWalker
type FileVisitDetails struct {
	File         string // absolute path
	RelativePath RelativePath
	IsDirectory  bool

	stopFlag *atomic.Bool
	metadata *FileMetadataSnapshot
}

// Name returns the base name of the entry
func (d *FileVisitDetails) Name() string {
	return filepath.Base(d.File)
}

// Path returns the '/'-separated relative path
func (d *FileVisitDetails) Path() string {
	return d.RelativePath.PathString()
}

// StopVisiting asks the walk to end as soon as it next checks the stop flag
func (d *FileVisitDetails) StopVisiting() {
	if d.stopFlag != nil {
		d.stopFlag.Store(true)
	}
}

// Metadata reads the entry's metadata once and remembers it
func (d *FileVisitDetails) Metadata() (FileMetadataSnapshot, error) {
	if d.metadata != nil {
		return *d.metadata, nil
	}
	metadata, err := StatMetadata(d.File)
	if err != nil {
		return FileMetadataSnapshot{}, err
	}
	d.metadata = &metadata
	return metadata, nil
}

// Spec decides whether a walked entry is visited. A rejected directory is
// not entered.
type Spec func(details *FileVisitDetails) bool

// AllowAll visits every entry
func AllowAll(*FileVisitDetails) bool {
	return true
}

// FileVisitor receives the entries of a walk. Returning an error aborts the walk.
type FileVisitor interface {
	VisitDir(details *FileVisitDetails) error
	VisitFile(details *FileVisitDetails) error
}

// ReproducibleFileVisitor is implemented by visitors that need entries in
// name order regardless of how the OS lists them
type ReproducibleFileVisitor interface {
	IsReproducibleFileOrder() bool
}

// DirectoryWalker traverses the subtree below dir depth first. At each
// level the allowed files are visited first, in listing order, then the
// allowed directories are handled one at a time: in prefix order VisitDir
// runs before the directory is entered, in postfix order after.
type DirectoryWalker interface {
	WalkDir(dir string, path RelativePath, visitor FileVisitor, spec Spec, stopFlag *atomic.Bool, postfix bool) error
}

// DefaultDirectoryWalker keeps the order in which the OS lists children
type DefaultDirectoryWalker struct{}

// WalkDir implements DirectoryWalker
func (DefaultDirectoryWalker) WalkDir(dir string, path RelativePath, visitor FileVisitor, spec Spec, stopFlag *atomic.Bool, postfix bool) error {
	return walkDir(listChildren, dir, path, visitor, spec, ensureStopFlag(stopFlag), postfix)
}

// ReproducibleDirectoryWalker visits children sorted by name
type ReproducibleDirectoryWalker struct{}

// WalkDir implements DirectoryWalker
func (ReproducibleDirectoryWalker) WalkDir(dir string, path RelativePath, visitor FileVisitor, spec Spec, stopFlag *atomic.Bool, postfix bool) error {
	return walkDir(listSortedChildren, dir, path, visitor, spec, ensureStopFlag(stopFlag), postfix)
}

type childLister func(dir string) ([]os.DirEntry, error)

func walkDir(list childLister, dir string, path RelativePath, visitor FileVisitor, spec Spec, stopFlag *atomic.Bool, postfix bool) error {
	children, err := list(dir)
	if err != nil {
		return &TraversalError{
			Path:       dir,
			Unreadable: errors.Is(err, fs.ErrPermission),
			Err:        err,
		}
	}
	if spec == nil {
		spec = AllowAll
	}

	var dirs []*FileVisitDetails
	for i := 0; !stopFlag.Load() && i < len(children); i++ {
		child := children[i]
		childFile := filepath.Join(dir, child.Name())
		isFile := !isDirectoryEntry(childFile, child)
		details := &FileVisitDetails{
			File:         childFile,
			RelativePath: path.Append(isFile, child.Name()),
			IsDirectory:  !isFile,
			stopFlag:     stopFlag,
		}
		if !spec(details) {
			continue
		}
		if isFile {
			if err := visitor.VisitFile(details); err != nil {
				return err
			}
		} else {
			dirs = append(dirs, details)
		}
	}

	for i := 0; !stopFlag.Load() && i < len(dirs); i++ {
		details := dirs[i]
		if postfix {
			if err := walkDir(list, details.File, details.RelativePath, visitor, spec, stopFlag, postfix); err != nil {
				return err
			}
			if stopFlag.Load() {
				return nil
			}
			if err := visitor.VisitDir(details); err != nil {
				return err
			}
		} else {
			if err := visitor.VisitDir(details); err != nil {
				return err
			}
			if stopFlag.Load() {
				return nil
			}
			if err := walkDir(list, details.File, details.RelativePath, visitor, spec, stopFlag, postfix); err != nil {
				return err
			}
		}
	}
	return nil
}

// isDirectoryEntry follows symbolic links. A dangling link counts as a file.
func isDirectoryEntry(path string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func listChildren(dir string) ([]os.DirEntry, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.ReadDir(-1)
}

func listSortedChildren(dir string) ([]os.DirEntry, error) {
	children, err := listChildren(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].Name() < children[j].Name()
	})
	return children, nil
}

func ensureStopFlag(stopFlag *atomic.Bool) *atomic.Bool {
	if stopFlag == nil {
		return new(atomic.Bool)
	}
	return stopFlag
}
