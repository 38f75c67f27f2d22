package incremental

import (
	"unique"
)

// StringInterner de-duplicates strings such as path segments
type StringInterner interface {
	Intern(s string) string
}

// UniqueInterner interns through the runtime's unique package, so equal
// strings share one backing array for as long as any copy is live.
type UniqueInterner struct{}

// Intern implements StringInterner
func (UniqueInterner) Intern(s string) string {
	return unique.Make(s).Value()
}

// NoopInterner returns strings unchanged
type NoopInterner struct{}

// Intern implements StringInterner
func (NoopInterner) Intern(s string) string {
	return s
}
