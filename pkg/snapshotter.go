package incremental

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync/atomic"
)

// FileSystemSnapshotter turns a root path into a snapshot
type FileSystemSnapshotter struct {
	algorithm               *HashAlgorithm
	hasher                  FileHasher
	interner                StringInterner
	walker                  DirectoryWalker
	postfix                 bool
	reproducible            bool
	includeEmptyDirectories bool
}

// NewFileSystemSnapshotter creates a snapshotter. A nil hasher hashes every
// file with algorithm; a nil interner uses the unique package.
func NewFileSystemSnapshotter(algorithm *HashAlgorithm, hasher FileHasher, interner StringInterner) *FileSystemSnapshotter {
	if algorithm == nil {
		algorithm = DefaultHashAlgorithm()
	}
	if hasher == nil {
		hasher = DefaultFileHasher{Algorithm: algorithm}
	}
	if interner == nil {
		interner = UniqueInterner{}
	}
	return &FileSystemSnapshotter{
		algorithm:               algorithm,
		hasher:                  hasher,
		interner:                interner,
		walker:                  DefaultDirectoryWalker{},
		reproducible:            true,
		includeEmptyDirectories: true,
	}
}

// Configure applies the walk and snapshot sections of cfg
func (s *FileSystemSnapshotter) Configure(walk *WalkConfig, snapshot *SnapshotConfig) *FileSystemSnapshotter {
	if walk != nil {
		s.postfix = walk.Postfix
		s.reproducible = walk.Reproducible
	}
	if snapshot != nil {
		s.includeEmptyDirectories = snapshot.IncludeEmptyDirectories
	}
	return s
}

// Snapshot captures root. A missing root yields a MissingFileSnapshot, a
// file root a RegularFileSnapshot, or EmptySnapshot if patterns reject it.
// A directory is walked and hashed; results never depend on listing order.
// ErrWalkStopped is returned if stopFlag ended the walk.
func (s *FileSystemSnapshotter) Snapshot(root string, patterns *PatternFilter, stopFlag *atomic.Bool) (FileSystemSnapshot, error) {
	defer VerboseEnter()()
	stopFlag = ensureStopFlag(stopFlag)

	absolutePath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	metadata, err := StatMetadata(absolutePath)
	if err != nil {
		return nil, err
	}

	switch metadata.Type {
	case Missing:
		VerboseLog(1, "file or directory '%s', not found", absolutePath)
		return NewMissingFileSnapshot(absolutePath, s.interner.Intern(filepath.Base(absolutePath))), nil
	case RegularFile:
		if !patterns.IsAllowed(filepath.Base(absolutePath), false) {
			return EmptySnapshot, nil
		}
		hash, err := s.hasher.Hash(absolutePath, metadata)
		if err != nil {
			return nil, err
		}
		return NewRegularFileSnapshot(absolutePath, s.interner.Intern(filepath.Base(absolutePath)), hash, metadata.LastModified), nil
	}

	builder := NewFileSystemSnapshotBuilder(s.algorithm, s.interner)
	if !s.includeEmptyDirectories {
		builder.PruneEmptyDirectories()
	}
	if err := builder.AddDir(absolutePath, nil); err != nil {
		return nil, err
	}

	tree := NewDirectoryFileTree(absolutePath, patterns)
	tree.Walker = s.walker
	if s.postfix {
		tree = tree.Postfix()
	}
	visitor := &snapshottingVisitor{snapshotter: s, builder: builder}
	if err := tree.Visit(visitor, stopFlag); err != nil {
		return nil, err
	}
	if stopFlag.Load() {
		return nil, ErrWalkStopped
	}

	VerboseLog(2, "snapshotted %s: %d files, %d directories, %d missing", absolutePath, visitor.files, visitor.dirs, visitor.missing)
	return builder.Build(), nil
}

type snapshottingVisitor struct {
	snapshotter *FileSystemSnapshotter
	builder     *FileSystemSnapshotBuilder
	files       int
	dirs        int
	missing     int
}

func (v *snapshottingVisitor) IsReproducibleFileOrder() bool {
	return v.snapshotter.reproducible
}

func (v *snapshottingVisitor) VisitDir(details *FileVisitDetails) error {
	v.dirs++
	return v.builder.AddDir(details.File, details.RelativePath.Segments())
}

func (v *snapshottingVisitor) VisitFile(details *FileVisitDetails) error {
	metadata, err := details.Metadata()
	if err != nil {
		return err
	}
	name := v.snapshotter.interner.Intern(details.Name())
	if metadata.Type == Missing {
		VerboseLog(1, "recording '%s' as missing: target does not exist", details.File)
		v.missing++
		return v.builder.AddFile(details.File, details.RelativePath.Segments(), NewMissingFileSnapshot(details.File, name))
	}

	hash, err := v.snapshotter.hasher.Hash(details.File, metadata)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			VerboseLog(1, "skipping '%s': removed during walk", details.File)
			return nil
		}
		return err
	}

	v.files++
	snapshot := NewRegularFileSnapshot(details.File, name, hash, metadata.LastModified)
	return v.builder.AddFile(details.File, details.RelativePath.Segments(), snapshot)
}
