package incremental

import (
	"bytes"
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotTree(t *testing.T, root string) FileSystemSnapshot {
	t.Helper()
	snapshot, err := NewFileSystemSnapshotter(nil, nil, nil).Snapshot(root, nil, nil)
	require.NoError(t, err)
	return snapshot
}

func normalizedPaths(fingerprint *FileCollectionFingerprint) []string {
	paths := make([]string, 0, fingerprint.Len())
	for _, entry := range fingerprint.Entries() {
		paths = append(paths, entry.Fingerprint.NormalizedPath)
	}
	return paths
}

func TestStrategyByName(t *testing.T) {
	for _, identifier := range FingerprintingStrategies {
		strategy, err := StrategyByName(string(identifier))
		require.NoError(t, err)
		assert.Equal(t, identifier, strategy.Identifier())
		assert.Equal(t, identifier, strategy.EmptyFingerprint().Strategy())
	}

	strategy, err := StrategyByName("RELATIVE")
	require.NoError(t, err)
	assert.Equal(t, RelativePathStrategy, strategy.Identifier())

	_, err = StrategyByName("name-only")
	assert.ErrorContains(t, err, "unsupported fingerprinting strategy")
}

func TestFingerprintStrategiesOnDirectory(t *testing.T) {
	root := createTree(t, map[string]string{
		"a.txt":     "a",
		"sub/b.txt": "b",
	})
	roots := []FileSystemSnapshot{snapshotTree(t, root)}

	absolute := AbsolutePathFingerprinting{}.CollectFingerprints(roots)
	assert.Equal(t, []string{
		root,
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "sub"),
		filepath.Join(root, "sub", "b.txt"),
	}, absolute.Keys())
	assert.Equal(t, absolute.Keys(), normalizedPaths(absolute))

	relative := RelativePathFingerprinting{}.CollectFingerprints(roots)
	assert.Equal(t, absolute.Keys(), relative.Keys())
	assert.Equal(t, []string{"", "a.txt", "sub", "sub/b.txt"}, normalizedPaths(relative))

	ignored := IgnoredPathFingerprinting{}.CollectFingerprints(roots)
	assert.Equal(t, []string{filepath.Join(root, "a.txt"), filepath.Join(root, "sub", "b.txt")}, ignored.Keys())
	assert.Equal(t, []string{"", ""}, normalizedPaths(ignored))

	classpath := ClasspathFingerprinting{}.CollectFingerprints(roots)
	assert.Equal(t, ignored.Keys(), classpath.Keys())
	assert.Equal(t, classpath.Keys(), normalizedPaths(classpath))

	entry, ok := relative.Get(filepath.Join(root, "a.txt"))
	require.True(t, ok)
	assert.Equal(t, RegularFile, entry.Type)
	assert.Equal(t, contentHash("a"), entry.NormalizedContentHash)

	dir, ok := relative.Get(filepath.Join(root, "sub"))
	require.True(t, ok)
	assert.Equal(t, Directory, dir.Type)

	for _, fingerprint := range []*FileCollectionFingerprint{absolute, relative, ignored, classpath} {
		hashes := fingerprint.RootHashes()
		require.Len(t, hashes, 1)
		assert.Equal(t, root, hashes[0].Root)
		assert.Equal(t, roots[0].(*DirectorySnapshot).Hash(), hashes[0].Hash)
	}
}

func TestFingerprintRelativeRootFile(t *testing.T) {
	root := createTree(t, map[string]string{"a.txt": "a"})
	roots := []FileSystemSnapshot{snapshotTree(t, filepath.Join(root, "a.txt"))}

	relative := RelativePathFingerprinting{}.CollectFingerprints(roots)
	assert.Equal(t, []string{"a.txt"}, normalizedPaths(relative))
}

func TestFingerprintMissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	roots := []FileSystemSnapshot{snapshotTree(t, missing)}

	fingerprint := AbsolutePathFingerprinting{}.CollectFingerprints(roots)
	entry, ok := fingerprint.Get(missing)
	require.True(t, ok)
	assert.Equal(t, Missing, entry.Type)
	assert.Equal(t, MissingFileSignature, entry.NormalizedContentHash)
}

func TestSnapshotterRecordsDanglingLinkAsMissing(t *testing.T) {
	root := createTree(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	before := AbsolutePathFingerprinting{}.CollectFingerprints([]FileSystemSnapshot{snapshotTree(t, root)})

	linkPath := filepath.Join(root, "b.txt")
	require.NoError(t, os.Remove(linkPath))
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), linkPath))
	after := AbsolutePathFingerprinting{}.CollectFingerprints([]FileSystemSnapshot{snapshotTree(t, root)})

	assert.Equal(t, []string{root, filepath.Join(root, "a.txt"), linkPath}, after.Keys())
	entry, ok := after.Get(linkPath)
	require.True(t, ok)
	assert.Equal(t, Missing, entry.Type)
	assert.Equal(t, MissingFileSignature, entry.NormalizedContentHash)

	visitor := &CollectingChangeVisitor{}
	_, err := CompareFingerprints(visitor, after, before, "Input", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"modified " + root, "modified " + linkPath}, describe(visitor.Changes))
	assert.Equal(t, RegularFile, visitor.Changes[1].PreviousType)
	assert.Equal(t, Missing, visitor.Changes[1].CurrentType)
}

func TestFingerprintRelocatedTreeIsUnchanged(t *testing.T) {
	files := map[string]string{"a.txt": "a", "sub/b.txt": "b"}
	before := RelativePathFingerprinting{}.CollectFingerprints([]FileSystemSnapshot{snapshotTree(t, createTree(t, files))})
	after := RelativePathFingerprinting{}.CollectFingerprints([]FileSystemSnapshot{snapshotTree(t, createTree(t, files))})

	visitor := &CollectingChangeVisitor{}
	completed, err := CompareFingerprints(visitor, after, before, "Input", true)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Empty(t, visitor.Changes)

	beforeHash, err := before.Hash(nil)
	require.NoError(t, err)
	afterHash, err := after.Hash(nil)
	require.NoError(t, err)
	assert.Equal(t, beforeHash, afterHash)
}

func TestFingerprintKeepsFirstDuplicateKey(t *testing.T) {
	fingerprint := EmptyFingerprint(AbsolutePathStrategy)
	assert.True(t, fingerprint.add("/a", FileSystemLocationFingerprint{NormalizedPath: "/a", NormalizedContentHash: contentHash("1")}))
	assert.False(t, fingerprint.add("/a", FileSystemLocationFingerprint{NormalizedPath: "/a", NormalizedContentHash: contentHash("2")}))

	entry, _ := fingerprint.Get("/a")
	assert.Equal(t, contentHash("1"), entry.NormalizedContentHash)
	assert.Equal(t, 1, fingerprint.Len())
}

func TestFingerprintGobRoundTrip(t *testing.T) {
	root := createTree(t, map[string]string{"a.txt": "a", "sub/b.txt": "b"})
	original := ClasspathFingerprinting{}.CollectFingerprints([]FileSystemSnapshot{snapshotTree(t, root)})

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(original))

	decoded := &FileCollectionFingerprint{}
	require.NoError(t, gob.NewDecoder(&buf).Decode(decoded))

	assert.Equal(t, original.Strategy(), decoded.Strategy())
	assert.Equal(t, original.Entries(), decoded.Entries())
	assert.Equal(t, original.RootHashes(), decoded.RootHashes())
	assert.True(t, decoded.sameRootHashes(original))
}

func TestSnapshotterFileRootRejectedByPatterns(t *testing.T) {
	root := createTree(t, map[string]string{"a.txt": "a"})
	patterns, err := NewPatternFilter([]string{`\.go$`}, nil)
	require.NoError(t, err)

	snapshot, err := NewFileSystemSnapshotter(nil, nil, nil).Snapshot(filepath.Join(root, "a.txt"), patterns, nil)
	require.NoError(t, err)
	assert.Equal(t, EmptySnapshot, snapshot)
	assert.Nil(t, RootLocations(snapshot))
}

func TestSnapshotterStopFlag(t *testing.T) {
	root := createTree(t, map[string]string{"a.txt": "a"})
	stopFlag := &atomic.Bool{}
	stopFlag.Store(true)

	_, err := NewFileSystemSnapshotter(nil, nil, nil).Snapshot(root, nil, stopFlag)
	assert.True(t, errors.Is(err, ErrWalkStopped))
}

func TestSnapshotterEmptyDirectories(t *testing.T) {
	root := createTree(t, map[string]string{"a.txt": "a"})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

	kept := snapshotTree(t, root).(*DirectorySnapshot)
	assert.Len(t, kept.Children(), 2)

	pruned, err := NewFileSystemSnapshotter(nil, nil, nil).
		Configure(&WalkConfig{Reproducible: true}, &SnapshotConfig{IncludeEmptyDirectories: false}).
		Snapshot(root, nil, nil)
	require.NoError(t, err)
	assert.Len(t, pruned.(*DirectorySnapshot).Children(), 1)
}

func TestSnapshotterIndependentOfWalkOrder(t *testing.T) {
	root := createTree(t, map[string]string{"c.txt": "c", "a.txt": "a", "b/d.txt": "d"})

	reproducible := snapshotTree(t, root).(*DirectorySnapshot)
	postfix, err := NewFileSystemSnapshotter(nil, nil, nil).
		Configure(&WalkConfig{Postfix: true}, &SnapshotConfig{IncludeEmptyDirectories: true}).
		Snapshot(root, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, reproducible.Hash(), postfix.(*DirectorySnapshot).Hash())
}

func TestCompareFingerprints(t *testing.T) {
	current := buildFingerprint(AbsolutePathStrategy, file("a", "1"))

	t.Run("nil current", func(t *testing.T) {
		_, err := CompareFingerprints(&CollectingChangeVisitor{}, nil, current, "Input", true)
		assert.True(t, errors.Is(err, ErrContractViolation))
	})

	t.Run("nil previous", func(t *testing.T) {
		visitor := &CollectingChangeVisitor{}
		completed, err := CompareFingerprints(visitor, current, nil, "Input", true)
		require.NoError(t, err)
		assert.True(t, completed)
		assert.Equal(t, []string{"added a"}, describe(visitor.Changes))
	})

	t.Run("strategy mismatch", func(t *testing.T) {
		previous := buildFingerprint(RelativePathStrategy, file("a", "1"))
		_, err := CompareFingerprints(&CollectingChangeVisitor{}, current, previous, "Input", true)
		assert.True(t, errors.Is(err, ErrStrategyMismatch))
	})

	t.Run("same root hashes", func(t *testing.T) {
		withRoots := buildFingerprint(AbsolutePathStrategy, file("a", "1"))
		withRoots.addRootHash("/r", contentHash("root"))
		// The entries differ, but equal root hashes end the comparison.
		previous := buildFingerprint(AbsolutePathStrategy, file("a", "2"))
		previous.addRootHash("/r", contentHash("root"))

		visitor := &CollectingChangeVisitor{}
		completed, err := CompareFingerprints(visitor, withRoots, previous, "Input", true)
		require.NoError(t, err)
		assert.True(t, completed)
		assert.Empty(t, visitor.Changes)
	})
}

func TestFileCollectionFingerprinter(t *testing.T) {
	first := createTree(t, map[string]string{"a.txt": "a"})
	second := createTree(t, map[string]string{"b.txt": "b"})

	fingerprinter := NewFileCollectionFingerprinter(NewFileSystemSnapshotter(nil, nil, nil), nil)
	fingerprint, err := fingerprinter.Fingerprint([]string{first, second}, ClasspathFingerprinting{}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(first, "a.txt"), filepath.Join(second, "b.txt")}, fingerprint.Keys())
	require.Len(t, fingerprint.RootHashes(), 2)
	assert.Equal(t, first, fingerprint.RootHashes()[0].Root)
	assert.Equal(t, second, fingerprint.RootHashes()[1].Root)
}
