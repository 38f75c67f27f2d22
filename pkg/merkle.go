package incremental

import (
	"sort"
)

type merkleFrame struct {
	absolutePath string
	name         string
	children     []FileSystemLocationSnapshot
}

// MerkleDirectorySnapshotBuilder assembles a rooted snapshot from a stream
// of directory events. Each directory's hash covers the DIR signature and
// the (name, hash) pair of every child, in stored order.
//
// Unbalanced events are programming errors and panic, like a negative
// sync.WaitGroup counter.
type MerkleDirectorySnapshotBuilder struct {
	algorithm       *HashAlgorithm
	sortingRequired bool

	frames []*merkleFrame
	result FileSystemLocationSnapshot
}

// NewMerkleDirectorySnapshotBuilder creates a builder. With sortingRequired
// children are sorted by name before hashing, otherwise insertion order is
// kept. A nil algorithm means the default.
func NewMerkleDirectorySnapshotBuilder(algorithm *HashAlgorithm, sortingRequired bool) *MerkleDirectorySnapshotBuilder {
	if algorithm == nil {
		algorithm = DefaultHashAlgorithm()
	}
	return &MerkleDirectorySnapshotBuilder{
		algorithm:       algorithm,
		sortingRequired: sortingRequired,
	}
}

// PreVisitDirectory opens a directory level
func (b *MerkleDirectorySnapshotBuilder) PreVisitDirectory(absolutePath, name string) {
	b.frames = append(b.frames, &merkleFrame{absolutePath: absolutePath, name: name})
}

// Visit adds a leaf. At the root the leaf becomes the result.
func (b *MerkleDirectorySnapshotBuilder) Visit(snapshot FileSystemLocationSnapshot) {
	if b.IsRoot() {
		b.result = snapshot
		return
	}
	top := b.frames[len(b.frames)-1]
	top.children = append(top.children, snapshot)
}

// PostVisitDirectory closes the current directory, keeping it even if empty
func (b *MerkleDirectorySnapshotBuilder) PostVisitDirectory() {
	b.PostVisitDirectoryIncludeEmpty(true)
}

// PostVisitDirectoryIncludeEmpty closes the current directory. When
// includeEmpty is false and the directory has no children it is dropped and
// false is returned.
func (b *MerkleDirectorySnapshotBuilder) PostVisitDirectoryIncludeEmpty(includeEmpty bool) bool {
	if b.IsRoot() {
		panic("merkle builder: PostVisitDirectory without matching PreVisitDirectory")
	}
	frame := b.frames[len(b.frames)-1]
	b.frames = b.frames[:len(b.frames)-1]

	if !includeEmpty && len(frame.children) == 0 {
		DebugLog("merkle", "pruning empty directory %s", frame.absolutePath)
		return false
	}

	if b.sortingRequired {
		sort.SliceStable(frame.children, func(i, j int) bool {
			return frame.children[i].Name() < frame.children[j].Name()
		})
	}
	directory := NewDirectorySnapshot(frame.absolutePath, frame.name, frame.children,
		HashDirectoryChildren(b.algorithm, frame.children))
	DebugLog("merkle", "directory %s (%d children) %s", frame.absolutePath, len(frame.children), directory.Hash())

	if b.IsRoot() {
		b.result = directory
	} else {
		parent := b.frames[len(b.frames)-1]
		parent.children = append(parent.children, directory)
	}
	return true
}

// IsRoot reports whether no directory is currently open
func (b *MerkleDirectorySnapshotBuilder) IsRoot() bool {
	return len(b.frames) == 0
}

// Depth returns the number of open directories
func (b *MerkleDirectorySnapshotBuilder) Depth() int {
	return len(b.frames)
}

// Result returns the finished root, or nil before the outermost directory
// has been closed or a root leaf visited
func (b *MerkleDirectorySnapshotBuilder) Result() FileSystemLocationSnapshot {
	if !b.IsRoot() {
		return nil
	}
	return b.result
}

// SnapshotVisitor adapts the builder so an existing snapshot tree can be
// replayed through it, for example to re-hash it with sorting.
func (b *MerkleDirectorySnapshotBuilder) SnapshotVisitor() FileSystemSnapshotVisitor {
	return merkleReplay{b}
}

type merkleReplay struct {
	builder *MerkleDirectorySnapshotBuilder
}

func (r merkleReplay) PreVisitDirectory(directory *DirectorySnapshot) bool {
	r.builder.PreVisitDirectory(directory.AbsolutePath(), directory.Name())
	return true
}

func (r merkleReplay) VisitFile(snapshot FileSystemLocationSnapshot) {
	r.builder.Visit(snapshot)
}

func (r merkleReplay) PostVisitDirectory(*DirectorySnapshot) {
	r.builder.PostVisitDirectory()
}

// HashDirectoryChildren computes a directory hash over children in the given order
func HashDirectoryChildren(algorithm *HashAlgorithm, children []FileSystemLocationSnapshot) HashCode {
	hasher := algorithm.NewHasher()
	hasher.PutHash(DirSignature)
	for _, child := range children {
		hasher.PutString(child.Name())
		hasher.PutHash(child.Hash())
	}
	return hasher.Hash()
}
