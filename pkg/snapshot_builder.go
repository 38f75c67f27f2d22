package incremental

import (
	"path/filepath"
)

// FileSystemSnapshotBuilder builds a snapshot from files and directories
// added in any order, each addressed by its absolute path and its segments
// relative to the common root. The result is hashed with sorted children so
// the insertion order never matters.
type FileSystemSnapshotBuilder struct {
	algorithm    *HashAlgorithm
	interner     StringInterner
	includeEmpty bool

	root     *directoryNode
	rootPath string
	rootName string
	rootFile FileSystemLocationSnapshot
}

type directoryNode struct {
	subDirs map[string]*directoryNode
	files   map[string]FileSystemLocationSnapshot
}

func newDirectoryNode() *directoryNode {
	return &directoryNode{
		subDirs: make(map[string]*directoryNode),
		files:   make(map[string]FileSystemLocationSnapshot),
	}
}

// NewFileSystemSnapshotBuilder creates a builder that keeps empty directories.
// A nil interner disables interning.
func NewFileSystemSnapshotBuilder(algorithm *HashAlgorithm, interner StringInterner) *FileSystemSnapshotBuilder {
	if interner == nil {
		interner = NoopInterner{}
	}
	return &FileSystemSnapshotBuilder{
		algorithm:    algorithm,
		interner:     interner,
		includeEmpty: true,
	}
}

// PruneEmptyDirectories drops directories without children from the result
func (b *FileSystemSnapshotBuilder) PruneEmptyDirectories() *FileSystemSnapshotBuilder {
	b.includeEmpty = false
	return b
}

// AddDir records a directory and every directory above it
func (b *FileSystemSnapshotBuilder) AddDir(absolutePath string, segments []string) error {
	if err := b.checkNoRootFile("directory", absolutePath); err != nil {
		return err
	}
	return b.rootDir(absolutePath, segments).addDir(b, segments, 0)
}

// AddFile records a leaf, either a regular file or a missing location such
// as a dangling link. With no segments the leaf is the root itself.
func (b *FileSystemSnapshotBuilder) AddFile(absolutePath string, segments []string, snapshot FileSystemLocationSnapshot) error {
	if err := b.checkNoRootFile("another root file", absolutePath); err != nil {
		return err
	}
	if snapshot.Type() == Directory {
		return contractErrorf("directory '%s' added as a file, use AddDir", absolutePath)
	}
	if len(segments) == 0 {
		if b.root != nil {
			return contractErrorf("cannot add root file '%s' to directory '%s'", absolutePath, b.rootPath)
		}
		b.rootFile = snapshot
		return nil
	}
	return b.rootDir(absolutePath, segments).addFile(b, segments, 0, snapshot)
}

func (b *FileSystemSnapshotBuilder) checkNoRootFile(description, absolutePath string) error {
	if b.rootFile != nil {
		return contractErrorf("cannot add %s '%s' for root file '%s'", description, absolutePath, b.rootFile.AbsolutePath())
	}
	return nil
}

func (b *FileSystemSnapshotBuilder) rootDir(absolutePath string, segments []string) *directoryNode {
	if b.root == nil {
		rootPath := absolutePath
		for range segments {
			rootPath = filepath.Dir(rootPath)
		}
		b.root = newDirectoryNode()
		b.rootPath = b.interner.Intern(rootPath)
		b.rootName = b.interner.Intern(filepath.Base(rootPath))
	}
	return b.root
}

// Build returns the root file, the root directory, or EmptySnapshot when
// nothing was added. With pruning an empty root also yields EmptySnapshot.
func (b *FileSystemSnapshotBuilder) Build() FileSystemSnapshot {
	if b.rootFile != nil {
		return b.rootFile
	}
	if b.root == nil {
		return EmptySnapshot
	}
	merkle := NewMerkleDirectorySnapshotBuilder(b.algorithm, true)
	merkle.PreVisitDirectory(b.rootPath, b.rootName)
	b.root.accept(b, b.rootPath, merkle)
	merkle.PostVisitDirectoryIncludeEmpty(b.includeEmpty)
	if result := merkle.Result(); result != nil {
		return result
	}
	return EmptySnapshot
}

func (n *directoryNode) addFile(b *FileSystemSnapshotBuilder, segments []string, offset int, snapshot FileSystemLocationSnapshot) error {
	if len(segments) == offset {
		return contractErrorf("a file cannot be in the same place as a directory: %s", snapshot.AbsolutePath())
	}
	segment := b.interner.Intern(segments[offset])
	if len(segments) == offset+1 {
		if _, exists := n.subDirs[segment]; exists {
			return contractErrorf("a file cannot be added in the same place as a directory: %s", snapshot.AbsolutePath())
		}
		n.files[segment] = snapshot
		return nil
	}
	subDir, err := n.subDir(segment)
	if err != nil {
		return err
	}
	return subDir.addFile(b, segments, offset+1, snapshot)
}

func (n *directoryNode) addDir(b *FileSystemSnapshotBuilder, segments []string, offset int) error {
	if len(segments) == offset {
		return nil
	}
	subDir, err := n.subDir(b.interner.Intern(segments[offset]))
	if err != nil {
		return err
	}
	return subDir.addDir(b, segments, offset+1)
}

func (n *directoryNode) subDir(segment string) (*directoryNode, error) {
	if file, exists := n.files[segment]; exists {
		return nil, contractErrorf("a directory cannot be added in the same place as a file: %s", file.AbsolutePath())
	}
	subDir, exists := n.subDirs[segment]
	if !exists {
		subDir = newDirectoryNode()
		n.subDirs[segment] = subDir
	}
	return subDir, nil
}

func (n *directoryNode) accept(b *FileSystemSnapshotBuilder, directoryPath string, merkle *MerkleDirectorySnapshotBuilder) {
	for name, subDir := range n.subDirs {
		path := b.interner.Intern(filepath.Join(directoryPath, name))
		merkle.PreVisitDirectory(path, name)
		subDir.accept(b, path, merkle)
		merkle.PostVisitDirectoryIncludeEmpty(b.includeEmpty)
	}
	for _, file := range n.files {
		merkle.Visit(file)
	}
}
