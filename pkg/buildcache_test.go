package incremental

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(seed string) BuildCacheKey {
	return NewBuildCacheKey(contentHash(seed))
}

func TestDirectoryBuildCacheServiceRoundTrip(t *testing.T) {
	service, err := NewDirectoryBuildCacheService(t.TempDir())
	require.NoError(t, err)
	defer service.Close()

	key := testKey("entry")
	found, err := service.Load(key, func(io.Reader) error {
		t.Fatal("reader called on a miss")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, service.Store(key, func(w io.Writer) error {
		_, err := io.WriteString(w, "payload")
		return err
	}))

	var content string
	found, err = service.Load(key, func(r io.Reader) error {
		data, err := io.ReadAll(r)
		content = string(data)
		return err
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "payload", content)
}

func TestDirectoryBuildCacheServiceWriterErrorPassesThrough(t *testing.T) {
	dir := t.TempDir()
	service, err := NewDirectoryBuildCacheService(dir)
	require.NoError(t, err)

	writerErr := errors.New("packing failed")
	err = service.Store(testKey("k"), func(io.Writer) error { return writerErr })
	assert.Equal(t, writerErr, err)
	assert.False(t, IsNonFatalCacheError(err))

	found, err := service.Load(testKey("k"), func(io.Reader) error { return nil })
	require.NoError(t, err)
	assert.False(t, found)
}

type failingBuildCacheService struct {
	loads, stores int
	err           error
}

func (s *failingBuildCacheService) Load(key BuildCacheKey, _ BuildCacheEntryReader) (bool, error) {
	s.loads++
	return false, &BuildCacheError{Op: "load", Key: key, Err: s.err}
}

func (s *failingBuildCacheService) Store(key BuildCacheKey, _ BuildCacheEntryWriter) error {
	s.stores++
	return &BuildCacheError{Op: "store", Key: key, Err: s.err}
}

func (s *failingBuildCacheService) Close() error {
	return nil
}

func TestControlledBuildCacheServiceDisablesAfterFailures(t *testing.T) {
	delegate := &failingBuildCacheService{err: errors.New("disk full")}
	service := NewControlledBuildCacheService(delegate, 2)

	found, err := service.Load(testKey("a"), func(io.Reader) error { return nil })
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, service.Disabled())

	require.NoError(t, service.Store(testKey("a"), func(io.Writer) error { return nil }))
	assert.True(t, service.Disabled())
	assert.Equal(t, 2, service.Failures())

	_, err = service.Load(testKey("b"), func(io.Reader) error { return nil })
	require.NoError(t, err)
	require.NoError(t, service.Store(testKey("b"), func(io.Writer) error { return nil }))
	assert.Equal(t, 1, delegate.loads)
	assert.Equal(t, 1, delegate.stores)
}

func TestControlledBuildCacheServiceZeroToleratesNothing(t *testing.T) {
	service := NewControlledBuildCacheService(&failingBuildCacheService{err: errors.New("offline")}, 0)
	_, err := service.Load(testKey("a"), func(io.Reader) error { return nil })
	require.NoError(t, err)
	assert.True(t, service.Disabled())
}

func TestControlledBuildCacheServiceFatalErrorsPassThrough(t *testing.T) {
	delegate, err := NewDirectoryBuildCacheService(t.TempDir())
	require.NoError(t, err)
	service := NewControlledBuildCacheService(delegate, 1)

	fatal := errors.New("entity broken")
	err = service.Store(testKey("a"), func(io.Writer) error { return fatal })
	assert.Equal(t, fatal, err)
	assert.False(t, service.Disabled())
	assert.Equal(t, 0, service.Failures())
}

func TestBuildCacheErrorWrapsCause(t *testing.T) {
	cause := os.ErrPermission
	err := &BuildCacheError{Op: "load", Key: testKey("a"), Err: cause}
	assert.True(t, errors.Is(err, os.ErrPermission))
	assert.True(t, IsNonFatalCacheError(err))
	assert.True(t, strings.HasPrefix(err.Error(), "build cache load of "))
}

func TestCacheKeyFor(t *testing.T) {
	sources := buildFingerprint(RelativePathStrategy, normalized("/r/a", "a", "1"))
	changed := buildFingerprint(RelativePathStrategy, normalized("/r/a", "a", "2"))
	relocated := buildFingerprint(RelativePathStrategy, normalized("/elsewhere/a", "a", "1"))

	key, err := CacheKeyFor("compile", nil, sources)
	require.NoError(t, err)

	same, err := CacheKeyFor("compile", nil, relocated)
	require.NoError(t, err)
	assert.Equal(t, key, same)

	other, err := CacheKeyFor("compile", nil, changed)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	otherIdentity, err := CacheKeyFor("test", nil, sources)
	require.NoError(t, err)
	assert.NotEqual(t, key, otherIdentity)

	_, err = CacheKeyFor("compile", nil, EmptyFingerprint("bogus"))
	assert.Error(t, err)
}

func TestPackerRoundTrip(t *testing.T) {
	outputs := createTree(t, map[string]string{
		"classes/A.class":     "a",
		"classes/pkg/B.class": "b",
		"report.txt":          "report",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(outputs, "classes", "empty"), 0755))

	entity, err := NewOutputEntity("compile",
		OutputTree{Name: "classes", Type: DirectoryTree, Root: filepath.Join(outputs, "classes")},
		OutputTree{Name: "report", Type: FileTree, Root: filepath.Join(outputs, "report.txt")},
		OutputTree{Name: "absent", Type: FileTree, Root: filepath.Join(outputs, "absent.txt")},
	)
	require.NoError(t, err)

	service, err := NewDirectoryBuildCacheService(t.TempDir())
	require.NoError(t, err)
	key := testKey("compile")
	require.NoError(t, StoreEntity(service, key, entity, TarEntityPacker{}))

	// Damage the outputs, then restore them.
	require.NoError(t, os.RemoveAll(filepath.Join(outputs, "classes", "pkg")))
	require.NoError(t, os.WriteFile(filepath.Join(outputs, "classes", "stale.class"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(outputs, "report.txt"), []byte("changed"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(outputs, "absent.txt"), []byte("leftover"), 0644))

	found, err := LoadEntity(service, key, entity, TarEntityPacker{})
	require.NoError(t, err)
	assert.True(t, found)

	data, err := os.ReadFile(filepath.Join(outputs, "classes", "pkg", "B.class"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
	data, err = os.ReadFile(filepath.Join(outputs, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "report", string(data))

	assert.NoFileExists(t, filepath.Join(outputs, "classes", "stale.class"))
	assert.NoFileExists(t, filepath.Join(outputs, "absent.txt"))
	assert.DirExists(t, filepath.Join(outputs, "classes", "empty"))

	found, err = LoadEntity(service, testKey("other"), entity, TarEntityPacker{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewOutputEntityRejectsDuplicateNames(t *testing.T) {
	_, err := NewOutputEntity("compile",
		OutputTree{Name: "classes", Type: DirectoryTree, Root: "/a"},
		OutputTree{Name: "classes", Type: DirectoryTree, Root: "/b"},
	)
	assert.True(t, errors.Is(err, ErrContractViolation))
}

func TestPackRejectsTreeTypeMismatch(t *testing.T) {
	outputs := createTree(t, map[string]string{"dir/a": "a"})
	entity, err := NewOutputEntity("compile", OutputTree{Name: "dir", Type: FileTree, Root: filepath.Join(outputs, "dir")})
	require.NoError(t, err)

	_, err = TarEntityPacker{}.Pack(entity, io.Discard)
	assert.True(t, errors.Is(err, ErrContractViolation))
}

func TestResolveInsideRoot(t *testing.T) {
	target, err := resolveInsideRoot("/out", "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", "a", "b.txt"), target)

	_, err = resolveInsideRoot("/out", "../escape.txt")
	assert.Error(t, err)
}

func TestMakeDirectory(t *testing.T) {
	root := createTree(t, map[string]string{"file": "x"})

	created, err := MakeDirectory(filepath.Join(root, "new", "dir"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = MakeDirectory(filepath.Join(root, "new", "dir"))
	require.NoError(t, err)
	assert.False(t, created)

	created, err = MakeDirectory(filepath.Join(root, "file"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.DirExists(t, filepath.Join(root, "file"))
}

func TestEnsureDirectoryForTree(t *testing.T) {
	root := createTree(t, map[string]string{"dir/a": "a", "dir/sub/b": "b", "out/file.txt": "f"})

	require.NoError(t, EnsureDirectoryForTree(DirectoryTree, filepath.Join(root, "dir")))
	entries, err := os.ReadDir(filepath.Join(root, "dir"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, EnsureDirectoryForTree(FileTree, filepath.Join(root, "out", "file.txt")))
	assert.NoFileExists(t, filepath.Join(root, "out", "file.txt"))
	assert.DirExists(t, filepath.Join(root, "out"))

	require.NoError(t, EnsureDirectoryForTree(FileTree, filepath.Join(root, "fresh", "file.txt")))
	assert.DirExists(t, filepath.Join(root, "fresh"))
}
