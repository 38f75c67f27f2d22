package incremental

import (
	"fmt"
)

// FileSystemSnapshot is a set of snapshot roots that can be traversed
type FileSystemSnapshot interface {
	Accept(visitor FileSystemSnapshotVisitor)
}

// FileSystemSnapshotVisitor walks snapshot trees. Returning false from
// PreVisitDirectory skips the directory's children and its post visit.
type FileSystemSnapshotVisitor interface {
	PreVisitDirectory(directory *DirectorySnapshot) bool
	VisitFile(snapshot FileSystemLocationSnapshot)
	PostVisitDirectory(directory *DirectorySnapshot)
}

// FileSystemLocationSnapshot is an immutable snapshot of one location.
// The set of implementations is closed: *RegularFileSnapshot,
// *DirectorySnapshot and *MissingFileSnapshot.
type FileSystemLocationSnapshot interface {
	FileSystemSnapshot
	AbsolutePath() string
	Name() string
	Type() FileType
	Hash() HashCode
	isLocationSnapshot()
}

// RegularFileSnapshot records a file's content hash. The modification time is
// metadata only and never contributes to hashes.
type RegularFileSnapshot struct {
	absolutePath string
	name         string
	contentHash  HashCode
	lastModified int64
}

// NewRegularFileSnapshot creates a file snapshot
func NewRegularFileSnapshot(absolutePath, name string, contentHash HashCode, lastModified int64) *RegularFileSnapshot {
	return &RegularFileSnapshot{
		absolutePath: absolutePath,
		name:         name,
		contentHash:  contentHash,
		lastModified: lastModified,
	}
}

func (s *RegularFileSnapshot) AbsolutePath() string { return s.absolutePath }
func (s *RegularFileSnapshot) Name() string         { return s.name }
func (s *RegularFileSnapshot) Type() FileType       { return RegularFile }
func (s *RegularFileSnapshot) Hash() HashCode       { return s.contentHash }
func (s *RegularFileSnapshot) LastModified() int64  { return s.lastModified }
func (s *RegularFileSnapshot) isLocationSnapshot()  {}

// Accept implements FileSystemSnapshot
func (s *RegularFileSnapshot) Accept(visitor FileSystemSnapshotVisitor) {
	visitor.VisitFile(s)
}

// DirectorySnapshot holds its children in the order they were hashed
type DirectorySnapshot struct {
	absolutePath string
	name         string
	children     []FileSystemLocationSnapshot
	contentHash  HashCode
}

// NewDirectorySnapshot creates a directory snapshot. The hash must have been
// computed over children in the given order; see MerkleDirectorySnapshotBuilder.
func NewDirectorySnapshot(absolutePath, name string, children []FileSystemLocationSnapshot, contentHash HashCode) *DirectorySnapshot {
	return &DirectorySnapshot{
		absolutePath: absolutePath,
		name:         name,
		children:     children,
		contentHash:  contentHash,
	}
}

func (s *DirectorySnapshot) AbsolutePath() string { return s.absolutePath }
func (s *DirectorySnapshot) Name() string         { return s.name }
func (s *DirectorySnapshot) Type() FileType       { return Directory }
func (s *DirectorySnapshot) Hash() HashCode       { return s.contentHash }
func (s *DirectorySnapshot) isLocationSnapshot()  {}

// Children returns a copy of the child list
func (s *DirectorySnapshot) Children() []FileSystemLocationSnapshot {
	copied := make([]FileSystemLocationSnapshot, len(s.children))
	copy(copied, s.children)
	return copied
}

// Accept implements FileSystemSnapshot
func (s *DirectorySnapshot) Accept(visitor FileSystemSnapshotVisitor) {
	if !visitor.PreVisitDirectory(s) {
		return
	}
	for _, child := range s.children {
		child.Accept(visitor)
	}
	visitor.PostVisitDirectory(s)
}

// MissingFileSnapshot stands for a location that does not exist
type MissingFileSnapshot struct {
	absolutePath string
	name         string
}

// NewMissingFileSnapshot creates a missing-location snapshot
func NewMissingFileSnapshot(absolutePath, name string) *MissingFileSnapshot {
	return &MissingFileSnapshot{absolutePath: absolutePath, name: name}
}

func (s *MissingFileSnapshot) AbsolutePath() string { return s.absolutePath }
func (s *MissingFileSnapshot) Name() string         { return s.name }
func (s *MissingFileSnapshot) Type() FileType       { return Missing }
func (s *MissingFileSnapshot) Hash() HashCode       { return MissingFileSignature }
func (s *MissingFileSnapshot) isLocationSnapshot()  {}

// Accept implements FileSystemSnapshot
func (s *MissingFileSnapshot) Accept(visitor FileSystemSnapshotVisitor) {
	visitor.VisitFile(s)
}

type emptySnapshot struct{}

func (emptySnapshot) Accept(FileSystemSnapshotVisitor) {}

// EmptySnapshot has no roots
var EmptySnapshot FileSystemSnapshot = emptySnapshot{}

// CompositeSnapshot visits several roots in order
type CompositeSnapshot []FileSystemSnapshot

// Accept implements FileSystemSnapshot
func (c CompositeSnapshot) Accept(visitor FileSystemSnapshotVisitor) {
	for _, root := range c {
		root.Accept(visitor)
	}
}

// RootLocations returns the location snapshots at the top of s, flattening
// composites and dropping empty snapshots
func RootLocations(s FileSystemSnapshot) []FileSystemLocationSnapshot {
	switch v := s.(type) {
	case FileSystemLocationSnapshot:
		return []FileSystemLocationSnapshot{v}
	case CompositeSnapshot:
		var roots []FileSystemLocationSnapshot
		for _, root := range v {
			roots = append(roots, RootLocations(root)...)
		}
		return roots
	case emptySnapshot, nil:
		return nil
	default:
		panic(fmt.Sprintf("unexpected snapshot type %T", s))
	}
}
