package incremental

import (
	"fmt"
	"sort"
	"strings"
)

// FingerprintingStrategyIdentifier names a sensitivity policy. A fingerprint
// is always compared with the compare strategy of the policy that built it.
type FingerprintingStrategyIdentifier string

const (
	AbsolutePathStrategy FingerprintingStrategyIdentifier = "absolute"
	RelativePathStrategy FingerprintingStrategyIdentifier = "relative"
	IgnoredPathStrategy  FingerprintingStrategyIdentifier = "ignored"
	ClasspathStrategy    FingerprintingStrategyIdentifier = "classpath"
)

// FingerprintingStrategies lists the identifiers in display order
var FingerprintingStrategies = []FingerprintingStrategyIdentifier{
	AbsolutePathStrategy,
	RelativePathStrategy,
	IgnoredPathStrategy,
	ClasspathStrategy,
}

// FingerprintingStrategy projects snapshot roots into a fingerprint
type FingerprintingStrategy interface {
	Identifier() FingerprintingStrategyIdentifier
	CollectFingerprints(roots []FileSystemSnapshot) *FileCollectionFingerprint
	CompareStrategy() FingerprintCompareStrategy
	EmptyFingerprint() *FileCollectionFingerprint
}

// StrategyByName returns the fingerprinting strategy for a configuration value
func StrategyByName(name string) (FingerprintingStrategy, error) {
	switch FingerprintingStrategyIdentifier(strings.ToLower(name)) {
	case AbsolutePathStrategy:
		return AbsolutePathFingerprinting{}, nil
	case RelativePathStrategy:
		return RelativePathFingerprinting{}, nil
	case IgnoredPathStrategy:
		return IgnoredPathFingerprinting{}, nil
	case ClasspathStrategy:
		return ClasspathFingerprinting{}, nil
	default:
		return nil, fmt.Errorf("unsupported fingerprinting strategy: %s", name)
	}
}

// locationVisit is called for every location below a root. relativePath is
// '/'-separated and empty for the root itself.
type locationVisit func(location FileSystemLocationSnapshot, relativePath string, isRoot bool)

func visitLocations(location FileSystemLocationSnapshot, relativePath string, isRoot bool, visit locationVisit) {
	visit(location, relativePath, isRoot)
	switch l := location.(type) {
	case *DirectorySnapshot:
		for _, child := range l.children {
			childPath := child.Name()
			if relativePath != "" {
				childPath = relativePath + "/" + childPath
			}
			visitLocations(child, childPath, false, visit)
		}
	case *RegularFileSnapshot, *MissingFileSnapshot:
	default:
		panic(fmt.Sprintf("unexpected location snapshot type %T", location))
	}
}

// collect builds a fingerprint from every root location, recording the
// root hashes. normalize returns false to skip a location.
func collect(strategy FingerprintingStrategyIdentifier, roots []FileSystemSnapshot,
	normalize func(location FileSystemLocationSnapshot, relativePath string, isRoot bool) (string, bool)) *FileCollectionFingerprint {
	fingerprint := EmptyFingerprint(strategy)
	for _, root := range roots {
		for _, location := range RootLocations(root) {
			fingerprint.addRootHash(location.AbsolutePath(), location.Hash())
			visitLocations(location, "", true, func(l FileSystemLocationSnapshot, relativePath string, isRoot bool) {
				normalizedPath, ok := normalize(l, relativePath, isRoot)
				if !ok {
					return
				}
				fingerprint.add(l.AbsolutePath(), FileSystemLocationFingerprint{
					NormalizedPath:        normalizedPath,
					Type:                  l.Type(),
					NormalizedContentHash: l.Hash(),
				})
			})
		}
	}
	return fingerprint
}

// AbsolutePathFingerprinting keys every location, directories included, by
// its absolute path
type AbsolutePathFingerprinting struct{}

func (AbsolutePathFingerprinting) Identifier() FingerprintingStrategyIdentifier {
	return AbsolutePathStrategy
}

func (s AbsolutePathFingerprinting) CollectFingerprints(roots []FileSystemSnapshot) *FileCollectionFingerprint {
	return collect(s.Identifier(), roots, func(l FileSystemLocationSnapshot, _ string, _ bool) (string, bool) {
		return l.AbsolutePath(), true
	})
}

func (AbsolutePathFingerprinting) CompareStrategy() FingerprintCompareStrategy {
	return AbsolutePathCompareStrategy{}
}

func (s AbsolutePathFingerprinting) EmptyFingerprint() *FileCollectionFingerprint {
	return EmptyFingerprint(s.Identifier())
}

// RelativePathFingerprinting normalizes locations to their path below the
// root. A root directory normalizes to "" and a root file to its name.
type RelativePathFingerprinting struct{}

func (RelativePathFingerprinting) Identifier() FingerprintingStrategyIdentifier {
	return RelativePathStrategy
}

func (s RelativePathFingerprinting) CollectFingerprints(roots []FileSystemSnapshot) *FileCollectionFingerprint {
	return collect(s.Identifier(), roots, func(l FileSystemLocationSnapshot, relativePath string, isRoot bool) (string, bool) {
		if isRoot && l.Type() != Directory {
			return l.Name(), true
		}
		return relativePath, true
	})
}

func (RelativePathFingerprinting) CompareStrategy() FingerprintCompareStrategy {
	return NormalizedPathCompareStrategy{}
}

func (s RelativePathFingerprinting) EmptyFingerprint() *FileCollectionFingerprint {
	return EmptyFingerprint(s.Identifier())
}

// IgnoredPathFingerprinting keeps only content. Directories carry no content
// of their own and are skipped.
type IgnoredPathFingerprinting struct{}

func (IgnoredPathFingerprinting) Identifier() FingerprintingStrategyIdentifier {
	return IgnoredPathStrategy
}

func (s IgnoredPathFingerprinting) CollectFingerprints(roots []FileSystemSnapshot) *FileCollectionFingerprint {
	return collect(s.Identifier(), roots, func(l FileSystemLocationSnapshot, _ string, _ bool) (string, bool) {
		if l.Type() == Directory {
			return "", false
		}
		return "", true
	})
}

func (IgnoredPathFingerprinting) CompareStrategy() FingerprintCompareStrategy {
	return IgnoredPathCompareStrategy{}
}

func (s IgnoredPathFingerprinting) EmptyFingerprint() *FileCollectionFingerprint {
	return EmptyFingerprint(s.Identifier())
}

// ClasspathFingerprinting keys files and missing locations by absolute path
// and keeps them in root and walk order, since entry order decides shadowing
type ClasspathFingerprinting struct{}

func (ClasspathFingerprinting) Identifier() FingerprintingStrategyIdentifier {
	return ClasspathStrategy
}

func (s ClasspathFingerprinting) CollectFingerprints(roots []FileSystemSnapshot) *FileCollectionFingerprint {
	return collect(s.Identifier(), roots, func(l FileSystemLocationSnapshot, _ string, _ bool) (string, bool) {
		if l.Type() == Directory {
			return "", false
		}
		return l.AbsolutePath(), true
	})
}

func (ClasspathFingerprinting) CompareStrategy() FingerprintCompareStrategy {
	return ClasspathCompareStrategy{}
}

func (s ClasspathFingerprinting) EmptyFingerprint() *FileCollectionFingerprint {
	return EmptyFingerprint(s.Identifier())
}

// CompareStrategyFor returns the compare strategy paired with a policy
func CompareStrategyFor(identifier FingerprintingStrategyIdentifier) (FingerprintCompareStrategy, error) {
	strategy, err := StrategyByName(string(identifier))
	if err != nil {
		return nil, err
	}
	return strategy.CompareStrategy(), nil
}

// appendSortedToHasher folds fingerprints ordered by normalized path, then
// content hash
func appendSortedToHasher(hasher *Hasher, fingerprints []FileSystemLocationFingerprint) {
	sorted := make([]FileSystemLocationFingerprint, len(fingerprints))
	copy(sorted, fingerprints)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareFingerprints(sorted[i], sorted[j]) < 0
	})
	for _, fingerprint := range sorted {
		fingerprint.AppendToHasher(hasher)
	}
}
