package incremental

import (
	"fmt"
	"sync/atomic"
)

// FileCollectionFingerprinter snapshots roots and fingerprints them
type FileCollectionFingerprinter struct {
	snapshotter *FileSystemSnapshotter
	patterns    *PatternFilter
}

// NewFileCollectionFingerprinter creates a fingerprinter applying patterns
// to every root
func NewFileCollectionFingerprinter(snapshotter *FileSystemSnapshotter, patterns *PatternFilter) *FileCollectionFingerprinter {
	return &FileCollectionFingerprinter{snapshotter: snapshotter, patterns: patterns}
}

// Snapshot captures every root in order
func (f *FileCollectionFingerprinter) Snapshot(roots []string, stopFlag *atomic.Bool) ([]FileSystemSnapshot, error) {
	snapshots := make([]FileSystemSnapshot, 0, len(roots))
	for _, root := range roots {
		snapshot, err := f.snapshotter.Snapshot(root, f.patterns, stopFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot %s: %w", root, err)
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// Fingerprint snapshots roots and projects them with strategy
func (f *FileCollectionFingerprinter) Fingerprint(roots []string, strategy FingerprintingStrategy, stopFlag *atomic.Bool) (*FileCollectionFingerprint, error) {
	defer VerboseEnter()()
	snapshots, err := f.Snapshot(roots, stopFlag)
	if err != nil {
		return nil, err
	}
	fingerprint := strategy.CollectFingerprints(snapshots)
	VerboseLog(2, "fingerprinted %d roots with %s strategy: %d entries", len(roots), strategy.Identifier(), fingerprint.Len())
	return fingerprint, nil
}

// CompareFingerprints reports the changes from previous to current. A nil
// previous fingerprint counts as empty. Identical ordered root hashes end
// the comparison without a diff. The result is false if the visitor
// stopped the comparison.
func CompareFingerprints(visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) (bool, error) {
	if current == nil {
		return false, contractErrorf("current fingerprint is required")
	}
	if previous == nil {
		previous = EmptyFingerprint(current.strategy)
	}
	if current.strategy != previous.strategy {
		return false, fmt.Errorf("%w: current %s, previous %s", ErrStrategyMismatch, current.strategy, previous.strategy)
	}
	if current.sameRootHashes(previous) {
		DebugLog("compare", "root hashes unchanged for %s", propertyTitle)
		return true, nil
	}

	compare, err := CompareStrategyFor(current.strategy)
	if err != nil {
		return false, err
	}
	return compare.VisitChangesSince(visitor, current, previous, propertyTitle, includeAdded), nil
}
