package incremental

import (
	"strings"
)

// RelativePath is a path below a walk root, held as segments.
// The zero value is the root itself.
type RelativePath struct {
	segments     []string
	endsWithFile bool
}

// EmptyRoot is the relative path of a walk root
var EmptyRoot = RelativePath{}

// NewRelativePath builds a relative path from segments
func NewRelativePath(endsWithFile bool, segments ...string) RelativePath {
	copied := make([]string, len(segments))
	copy(copied, segments)
	return RelativePath{segments: copied, endsWithFile: endsWithFile}
}

// Append returns a child path. The receiver is never modified.
func (p RelativePath) Append(endsWithFile bool, name string) RelativePath {
	segments := make([]string, len(p.segments)+1)
	copy(segments, p.segments)
	segments[len(p.segments)] = name
	return RelativePath{segments: segments, endsWithFile: endsWithFile}
}

// Segments returns a copy of the path segments
func (p RelativePath) Segments() []string {
	copied := make([]string, len(p.segments))
	copy(copied, p.segments)
	return copied
}

// Len returns the number of segments
func (p RelativePath) Len() int {
	return len(p.segments)
}

// IsFile reports whether the last segment names a file
func (p RelativePath) IsFile() bool {
	return p.endsWithFile
}

// LastName returns the last segment, or "" for the root
func (p RelativePath) LastName() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// PathString joins the segments with '/'
func (p RelativePath) PathString() string {
	return strings.Join(p.segments, "/")
}

func (p RelativePath) String() string {
	return p.PathString()
}
