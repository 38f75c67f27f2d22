package incremental

// FingerprintCompareStrategy reports the changes between two fingerprints
// built by the same policy. VisitChangesSince returns false as soon as the
// visitor declines further changes.
type FingerprintCompareStrategy interface {
	VisitChangesSince(visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) bool
	AppendToHasher(hasher *Hasher, fingerprints []FileSystemLocationFingerprint)
}

// changeComparer is the policy-specific part of a compare strategy
type changeComparer interface {
	// trivialKey is the identity used by the fast path for single entries
	trivialKey(fingerprint FileSystemLocationFingerprint) string
	doVisitChangesSince(visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) bool
}

func visitChangesSince(comparer changeComparer, visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) bool {
	if result, trivial := compareTrivialFingerprints(comparer, visitor, current, previous, propertyTitle, includeAdded); trivial {
		return result
	}
	DebugLog("compare", "full comparison of %d current and %d previous entries", current.Len(), previous.Len())
	return comparer.doVisitChangesSince(visitor, current, previous, propertyTitle, includeAdded)
}

// compareTrivialFingerprints handles an empty side or one entry on each
// side. The second result is false when the comparison is not trivial.
func compareTrivialFingerprints(comparer changeComparer, visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) (bool, bool) {
	switch current.Len() {
	case 0:
		for _, key := range previous.keys {
			if !visitor.VisitChange(Removed(key, propertyTitle, previous.fingerprints[key].Type)) {
				return false, true
			}
		}
		return true, true
	case 1:
		switch previous.Len() {
		case 0:
			return reportAllAdded(visitor, current, propertyTitle, includeAdded), true
		case 1:
			return compareTrivialEntries(comparer, visitor, current, previous, propertyTitle, includeAdded), true
		default:
			return false, false
		}
	default:
		if !previous.IsEmpty() {
			return false, false
		}
		return reportAllAdded(visitor, current, propertyTitle, includeAdded), true
	}
}

func reportAllAdded(visitor ChangeVisitor, current *FileCollectionFingerprint, propertyTitle string, includeAdded bool) bool {
	if !includeAdded {
		return true
	}
	for _, key := range current.keys {
		if !visitor.VisitChange(Added(key, propertyTitle, current.fingerprints[key].Type)) {
			return false
		}
	}
	return true
}

func compareTrivialEntries(comparer changeComparer, visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) bool {
	currentKey, previousKey := current.keys[0], previous.keys[0]
	currentFingerprint := current.fingerprints[currentKey]
	previousFingerprint := previous.fingerprints[previousKey]

	if comparer.trivialKey(currentFingerprint) == comparer.trivialKey(previousFingerprint) {
		if currentFingerprint.NormalizedContentHash != previousFingerprint.NormalizedContentHash {
			return visitor.VisitChange(Modified(currentKey, propertyTitle, previousFingerprint.Type, currentFingerprint.Type))
		}
		return true
	}

	if !visitor.VisitChange(Removed(previousKey, propertyTitle, previousFingerprint.Type)) {
		return false
	}
	if includeAdded {
		return visitor.VisitChange(Added(currentKey, propertyTitle, currentFingerprint.Type))
	}
	return true
}

// AbsolutePathCompareStrategy matches entries by absolute path
type AbsolutePathCompareStrategy struct{}

// VisitChangesSince implements FingerprintCompareStrategy
func (s AbsolutePathCompareStrategy) VisitChangesSince(visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) bool {
	return visitChangesSince(s, visitor, current, previous, propertyTitle, includeAdded)
}

func (AbsolutePathCompareStrategy) trivialKey(fingerprint FileSystemLocationFingerprint) string {
	return fingerprint.NormalizedPath
}

func (AbsolutePathCompareStrategy) doVisitChangesSince(visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) bool {
	accounted := make(map[string]bool, previous.Len())

	for _, currentKey := range current.keys {
		currentFingerprint := current.fingerprints[currentKey]
		if previousFingerprint, ok := previous.fingerprints[currentKey]; ok {
			accounted[currentKey] = true
			if currentFingerprint.NormalizedContentHash != previousFingerprint.NormalizedContentHash {
				if !visitor.VisitChange(Modified(currentKey, propertyTitle, previousFingerprint.Type, currentFingerprint.Type)) {
					return false
				}
			}
		} else if includeAdded {
			if !visitor.VisitChange(Added(currentKey, propertyTitle, currentFingerprint.Type)) {
				return false
			}
		}
	}

	return reportUnaccounted(visitor, previous, accounted, propertyTitle)
}

// AppendToHasher implements FingerprintCompareStrategy
func (AbsolutePathCompareStrategy) AppendToHasher(hasher *Hasher, fingerprints []FileSystemLocationFingerprint) {
	appendSortedToHasher(hasher, fingerprints)
}

// NormalizedPathCompareStrategy matches entries by normalized path. Roots
// can share normalized paths, so each previous entry is consumed by at most
// one current entry, first come first served.
type NormalizedPathCompareStrategy struct{}

// VisitChangesSince implements FingerprintCompareStrategy
func (s NormalizedPathCompareStrategy) VisitChangesSince(visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) bool {
	return visitChangesSince(s, visitor, current, previous, propertyTitle, includeAdded)
}

func (NormalizedPathCompareStrategy) trivialKey(fingerprint FileSystemLocationFingerprint) string {
	return fingerprint.NormalizedPath
}

func (NormalizedPathCompareStrategy) doVisitChangesSince(visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) bool {
	unaccounted := make(map[string][]string, previous.Len())
	for _, key := range previous.keys {
		normalizedPath := previous.fingerprints[key].NormalizedPath
		unaccounted[normalizedPath] = append(unaccounted[normalizedPath], key)
	}
	accounted := make(map[string]bool, previous.Len())

	for _, currentKey := range current.keys {
		currentFingerprint := current.fingerprints[currentKey]
		candidates := unaccounted[currentFingerprint.NormalizedPath]
		if len(candidates) == 0 {
			if includeAdded {
				if !visitor.VisitChange(Added(currentKey, propertyTitle, currentFingerprint.Type)) {
					return false
				}
			}
			continue
		}

		previousKey := candidates[0]
		unaccounted[currentFingerprint.NormalizedPath] = candidates[1:]
		accounted[previousKey] = true
		previousFingerprint := previous.fingerprints[previousKey]
		if currentFingerprint.NormalizedContentHash != previousFingerprint.NormalizedContentHash {
			if !visitor.VisitChange(Modified(currentKey, propertyTitle, previousFingerprint.Type, currentFingerprint.Type)) {
				return false
			}
		}
	}

	return reportUnaccounted(visitor, previous, accounted, propertyTitle)
}

// AppendToHasher implements FingerprintCompareStrategy
func (NormalizedPathCompareStrategy) AppendToHasher(hasher *Hasher, fingerprints []FileSystemLocationFingerprint) {
	appendSortedToHasher(hasher, fingerprints)
}

// reportUnaccounted reports, in previous order, every previous entry no
// current entry matched
func reportUnaccounted(visitor ChangeVisitor, previous *FileCollectionFingerprint, accounted map[string]bool, propertyTitle string) bool {
	for _, key := range previous.keys {
		if accounted[key] {
			continue
		}
		if !visitor.VisitChange(Removed(key, propertyTitle, previous.fingerprints[key].Type)) {
			return false
		}
	}
	return true
}

// IgnoredPathCompareStrategy compares content only: the entries form a bag
// of content hashes.
//
// Each current entry consumes the first unconsumed previous entry with the
// same hash. This is not a minimal matching when duplicated content moves;
// the exact output is kept stable on purpose.
type IgnoredPathCompareStrategy struct{}

// VisitChangesSince implements FingerprintCompareStrategy
func (s IgnoredPathCompareStrategy) VisitChangesSince(visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) bool {
	return visitChangesSince(s, visitor, current, previous, propertyTitle, includeAdded)
}

// trivialKey is the normalized path, which is empty for every entry, so a
// single entry is always compared by content and reported as Modified
func (IgnoredPathCompareStrategy) trivialKey(fingerprint FileSystemLocationFingerprint) string {
	return fingerprint.NormalizedPath
}

type bagEntry struct {
	sortKey  string
	path     string
	fileType FileType
}

// bagSortKey orders by content hash, then path. The hex encoding keeps the
// bytewise hash order and the NUL separator sorts a shorter hash first.
func bagSortKey(hash HashCode, path string) string {
	return hash.String() + "\x00" + path
}

func (IgnoredPathCompareStrategy) doVisitChangesSince(visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) bool {
	unaccounted := newSortedIndex[bagEntry](16, func(e *bagEntry) string { return e.sortKey }, nil)
	byContent := make(map[HashCode][]*bagEntry, previous.Len())
	for _, key := range previous.keys {
		fingerprint := previous.fingerprints[key]
		entry := &bagEntry{
			sortKey:  bagSortKey(fingerprint.NormalizedContentHash, key),
			path:     key,
			fileType: fingerprint.Type,
		}
		unaccounted.Insert(entry, UnaccountedContext)
		byContent[fingerprint.NormalizedContentHash] = append(byContent[fingerprint.NormalizedContentHash], entry)
	}

	for _, currentKey := range current.keys {
		currentFingerprint := current.fingerprints[currentKey]
		candidates := byContent[currentFingerprint.NormalizedContentHash]
		if len(candidates) == 0 {
			if includeAdded {
				if !visitor.VisitChange(Added(currentKey, propertyTitle, currentFingerprint.Type)) {
					return false
				}
			}
			continue
		}
		byContent[currentFingerprint.NormalizedContentHash] = candidates[1:]
		unaccounted.UpdateContext(candidates[0].sortKey, AccountedContext)
	}

	return unaccounted.ForEachContext(UnaccountedContext, func(entry *bagEntry) bool {
		return visitor.VisitChange(Removed(entry.path, propertyTitle, entry.fileType))
	})
}

// AppendToHasher implements FingerprintCompareStrategy
func (IgnoredPathCompareStrategy) AppendToHasher(hasher *Hasher, fingerprints []FileSystemLocationFingerprint) {
	appendSortedToHasher(hasher, fingerprints)
}

// ClasspathCompareStrategy compares entries by position. An insertion or a
// deletion shifts every later position and is reported as a cascade of
// removed and added pairs.
type ClasspathCompareStrategy struct{}

// VisitChangesSince implements FingerprintCompareStrategy
func (s ClasspathCompareStrategy) VisitChangesSince(visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) bool {
	return visitChangesSince(s, visitor, current, previous, propertyTitle, includeAdded)
}

func (ClasspathCompareStrategy) trivialKey(fingerprint FileSystemLocationFingerprint) string {
	return fingerprint.NormalizedPath
}

func (ClasspathCompareStrategy) doVisitChangesSince(visitor ChangeVisitor, current, previous *FileCollectionFingerprint, propertyTitle string, includeAdded bool) bool {
	i, j := 0, 0
	for {
		if i < len(current.keys) {
			currentKey := current.keys[i]
			currentFingerprint := current.fingerprints[currentKey]
			i++
			if j >= len(previous.keys) {
				if includeAdded && !visitor.VisitChange(Added(currentKey, propertyTitle, currentFingerprint.Type)) {
					return false
				}
				continue
			}

			previousKey := previous.keys[j]
			previousFingerprint := previous.fingerprints[previousKey]
			j++
			if currentFingerprint.NormalizedPath == previousFingerprint.NormalizedPath {
				if currentFingerprint.NormalizedContentHash != previousFingerprint.NormalizedContentHash {
					if !visitor.VisitChange(Modified(currentKey, propertyTitle, previousFingerprint.Type, currentFingerprint.Type)) {
						return false
					}
				}
				continue
			}
			if !visitor.VisitChange(Removed(previousKey, propertyTitle, previousFingerprint.Type)) {
				return false
			}
			if includeAdded && !visitor.VisitChange(Added(currentKey, propertyTitle, currentFingerprint.Type)) {
				return false
			}
			continue
		}

		if j >= len(previous.keys) {
			return true
		}
		previousKey := previous.keys[j]
		j++
		if !visitor.VisitChange(Removed(previousKey, propertyTitle, previous.fingerprints[previousKey].Type)) {
			return false
		}
	}
}

// AppendToHasher folds entries in sequence order
func (ClasspathCompareStrategy) AppendToHasher(hasher *Hasher, fingerprints []FileSystemLocationFingerprint) {
	for _, fingerprint := range fingerprints {
		fingerprint.AppendToHasher(hasher)
	}
}
