package incremental

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// DirectoryFileTree walks a directory, visiting the entries allowed by its
// patterns. Files in a directory are visited before its subdirectories.
type DirectoryFileTree struct {
	Dir      string
	Patterns *PatternFilter
	Walker   DirectoryWalker

	postfix bool
}

// NewDirectoryFileTree creates a prefix-order tree using the default walker
func NewDirectoryFileTree(dir string, patterns *PatternFilter) *DirectoryFileTree {
	return &DirectoryFileTree{
		Dir:      dir,
		Patterns: patterns,
		Walker:   DefaultDirectoryWalker{},
	}
}

// Postfix returns a copy that visits directories after their contents
func (t *DirectoryFileTree) Postfix() *DirectoryFileTree {
	if t.postfix {
		return t
	}
	copied := *t
	copied.postfix = true
	return &copied
}

// IsPostfix reports the traversal order
func (t *DirectoryFileTree) IsPostfix() bool {
	return t.postfix
}

// DisplayName describes the tree and its patterns
func (t *DirectoryFileTree) DisplayName() string {
	var b strings.Builder
	fmt.Fprintf(&b, "directory '%s'", t.Dir)
	if includes := t.Patterns.includesOrNil(); len(includes) > 0 {
		fmt.Fprintf(&b, " include %s", strings.Join(includes, ", "))
	}
	if excludes := t.Patterns.excludesOrNil(); len(excludes) > 0 {
		fmt.Fprintf(&b, " exclude %s", strings.Join(excludes, ", "))
	}
	return b.String()
}

func (t *DirectoryFileTree) String() string {
	return t.DisplayName()
}

// Visit walks the tree from its root directory
func (t *DirectoryFileTree) Visit(visitor FileVisitor, stopFlag *atomic.Bool) error {
	return t.VisitFrom(visitor, t.Dir, EmptyRoot, stopFlag)
}

// VisitFrom processes fileOrDirectory. For a directory its contents, but not
// the directory itself, are filtered and visited. A single file is filtered
// and visited without walking. A location that does not exist is logged and
// produces no visits.
func (t *DirectoryFileTree) VisitFrom(visitor FileVisitor, fileOrDirectory string, path RelativePath, stopFlag *atomic.Bool) error {
	defer VerboseEnter()()
	stopFlag = ensureStopFlag(stopFlag)
	spec := t.Patterns.AsSpec()

	info, err := os.Stat(fileOrDirectory)
	if err != nil {
		if os.IsNotExist(err) {
			VerboseLog(1, "file or directory '%s', not found", fileOrDirectory)
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", fileOrDirectory, err)
	}

	if !info.IsDir() {
		details := &FileVisitDetails{
			File:         fileOrDirectory,
			RelativePath: NewRelativePath(true, filepath.Base(fileOrDirectory)),
			stopFlag:     stopFlag,
		}
		metadata := metadataFromInfo(info)
		details.metadata = &metadata
		if spec(details) {
			return visitor.VisitFile(details)
		}
		return nil
	}

	DebugLog("walk", "walking %s (postfix=%t)", t.DisplayName(), t.postfix)
	return t.walkerFor(visitor).WalkDir(fileOrDirectory, path, visitor, spec, stopFlag, t.postfix)
}

func (t *DirectoryFileTree) walkerFor(visitor FileVisitor) DirectoryWalker {
	if reproducible, ok := visitor.(ReproducibleFileVisitor); ok && reproducible.IsReproducibleFileOrder() {
		return ReproducibleDirectoryWalker{}
	}
	if t.Walker == nil {
		return DefaultDirectoryWalker{}
	}
	return t.Walker
}

func (pf *PatternFilter) includesOrNil() []string {
	if pf == nil {
		return nil
	}
	return pf.Includes()
}

func (pf *PatternFilter) excludesOrNil() []string {
	if pf == nil {
		return nil
	}
	return pf.Excludes()
}
