package incremental

// StatusResult summarizes the changes of one comparison
type StatusResult struct {
	Title     string       `json:"title" yaml:"title"`
	Modified  []string     `json:"modified" yaml:"modified"`
	Added     []string     `json:"added" yaml:"added"`
	Removed   []string     `json:"removed" yaml:"removed"`
	Changes   []FileChange `json:"-" yaml:"-"`
	Truncated bool         `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// NewStatusResult creates an empty result
func NewStatusResult(title string) *StatusResult {
	return &StatusResult{
		Title:    title,
		Modified: make([]string, 0),
		Added:    make([]string, 0),
		Removed:  make([]string, 0),
	}
}

// VisitChange implements ChangeVisitor
func (sr *StatusResult) VisitChange(change FileChange) bool {
	sr.Changes = append(sr.Changes, change)
	switch change.Change {
	case ChangeModified:
		sr.Modified = append(sr.Modified, change.Path)
	case ChangeAdded:
		sr.Added = append(sr.Added, change.Path)
	case ChangeRemoved:
		sr.Removed = append(sr.Removed, change.Path)
	}
	return true
}

// Status compares two fingerprints and collects the changes. With
// maxReported > 0 at most that many changes are collected and Truncated
// is set only if at least one further change was left out.
func Status(current, previous *FileCollectionFingerprint, title string, includeAdded bool, maxReported int) (*StatusResult, error) {
	defer VerboseEnter()()
	result := NewStatusResult(title)

	var visitor ChangeVisitor = result
	if maxReported > 0 {
		// one extra change tells a full page apart from a cut one
		visitor = NewLimitingChangeVisitor(maxReported+1, result)
	}
	if _, err := CompareFingerprints(visitor, current, previous, title, includeAdded); err != nil {
		return nil, err
	}
	if maxReported > 0 && len(result.Changes) > maxReported {
		result.dropLast()
		result.Truncated = true
	}
	if IsDebugEnabled("compare") {
		VerboseLog(3, "Status: %d changes, truncated=%t", result.TotalChanges(), result.Truncated)
	}
	return result, nil
}

func (sr *StatusResult) dropLast() {
	last := sr.Changes[len(sr.Changes)-1]
	sr.Changes = sr.Changes[:len(sr.Changes)-1]
	switch last.Change {
	case ChangeModified:
		sr.Modified = sr.Modified[:len(sr.Modified)-1]
	case ChangeAdded:
		sr.Added = sr.Added[:len(sr.Added)-1]
	case ChangeRemoved:
		sr.Removed = sr.Removed[:len(sr.Removed)-1]
	}
}

// HasChanges returns true if there are any changes
func (sr *StatusResult) HasChanges() bool {
	return len(sr.Modified) > 0 || len(sr.Added) > 0 || len(sr.Removed) > 0
}

// TotalChanges returns the total number of changed files
func (sr *StatusResult) TotalChanges() int {
	return len(sr.Modified) + len(sr.Added) + len(sr.Removed)
}
