package incremental

import (
	"fmt"
)

// ChangeType classifies a FileChange
type ChangeType int

const (
	ChangeAdded ChangeType = iota
	ChangeModified
	ChangeRemoved
)

func (t ChangeType) String() string {
	switch t {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// FileChange is one change event found by a comparison.
// PreviousType is only meaningful for modifications.
type FileChange struct {
	Path          string
	PropertyTitle string
	Change        ChangeType
	PreviousType  FileType
	CurrentType   FileType
}

// Added creates an addition event
func Added(path, propertyTitle string, currentType FileType) FileChange {
	return FileChange{Path: path, PropertyTitle: propertyTitle, Change: ChangeAdded, PreviousType: Missing, CurrentType: currentType}
}

// Removed creates a removal event
func Removed(path, propertyTitle string, previousType FileType) FileChange {
	return FileChange{Path: path, PropertyTitle: propertyTitle, Change: ChangeRemoved, PreviousType: previousType, CurrentType: Missing}
}

// Modified creates a modification event
func Modified(path, propertyTitle string, previousType, currentType FileType) FileChange {
	return FileChange{Path: path, PropertyTitle: propertyTitle, Change: ChangeModified, PreviousType: previousType, CurrentType: currentType}
}

// Message renders the change for humans
func (c FileChange) Message() string {
	return fmt.Sprintf("%s file %s has been %s.", c.PropertyTitle, c.Path, c.Change)
}

func (c FileChange) String() string {
	return c.Message()
}

// ChangeVisitor receives changes one at a time. Returning false stops the
// comparison that produced the change.
type ChangeVisitor interface {
	VisitChange(change FileChange) bool
}

// ChangeVisitorFunc adapts a function to ChangeVisitor
type ChangeVisitorFunc func(change FileChange) bool

// VisitChange implements ChangeVisitor
func (f ChangeVisitorFunc) VisitChange(change FileChange) bool {
	return f(change)
}

// CollectingChangeVisitor records every change and always asks for more
type CollectingChangeVisitor struct {
	Changes []FileChange
}

// VisitChange implements ChangeVisitor
func (v *CollectingChangeVisitor) VisitChange(change FileChange) bool {
	v.Changes = append(v.Changes, change)
	return true
}

// LimitingChangeVisitor forwards changes to a delegate and stops the
// comparison once maxReportedChanges have been forwarded. It can end a
// comparison early but never extends one the delegate has stopped.
type LimitingChangeVisitor struct {
	maxReportedChanges int
	delegate           ChangeVisitor
	visited            int
}

// NewLimitingChangeVisitor wraps delegate
func NewLimitingChangeVisitor(maxReportedChanges int, delegate ChangeVisitor) *LimitingChangeVisitor {
	return &LimitingChangeVisitor{
		maxReportedChanges: maxReportedChanges,
		delegate:           delegate,
	}
}

// VisitChange implements ChangeVisitor
func (v *LimitingChangeVisitor) VisitChange(change FileChange) bool {
	delegateResult := v.delegate.VisitChange(change)
	v.visited++
	return delegateResult && v.visited < v.maxReportedChanges
}

// Visited returns the number of changes forwarded so far
func (v *LimitingChangeVisitor) Visited() int {
	return v.visited
}
