package incremental

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// BuildCacheKey identifies a build cache entry
type BuildCacheKey struct {
	hash HashCode
}

// NewBuildCacheKey wraps a hash
func NewBuildCacheKey(hash HashCode) BuildCacheKey {
	return BuildCacheKey{hash: hash}
}

// CacheKeyFor derives a key from an entity identity and its input
// fingerprints, in order
func CacheKeyFor(identity string, algorithm *HashAlgorithm, inputs ...*FileCollectionFingerprint) (BuildCacheKey, error) {
	if algorithm == nil {
		algorithm = DefaultHashAlgorithm()
	}
	hasher := algorithm.NewHasher()
	hasher.PutString(identity)
	for _, input := range inputs {
		hasher.PutString(string(input.Strategy()))
		inputHash, err := input.Hash(algorithm)
		if err != nil {
			return BuildCacheKey{}, err
		}
		hasher.PutHash(inputHash)
	}
	return NewBuildCacheKey(hasher.Hash()), nil
}

// HashCode returns the key's hash
func (k BuildCacheKey) HashCode() HashCode {
	return k.hash
}

func (k BuildCacheKey) String() string {
	return k.hash.String()
}

// BuildCacheEntryReader consumes a found entry
type BuildCacheEntryReader func(r io.Reader) error

// BuildCacheEntryWriter streams an entry's bytes
type BuildCacheEntryWriter func(w io.Writer) error

// BuildCacheService stores and loads packaged entries. Backend failures are
// reported as *BuildCacheError; errors returned by reader or writer are
// passed through unchanged.
type BuildCacheService interface {
	Load(key BuildCacheKey, reader BuildCacheEntryReader) (bool, error)
	Store(key BuildCacheKey, writer BuildCacheEntryWriter) error
	Close() error
}

// BuildCacheError is a non-fatal cache backend failure
type BuildCacheError struct {
	Op  string // "load" or "store"
	Key BuildCacheKey
	Err error
}

func (e *BuildCacheError) Error() string {
	return fmt.Sprintf("build cache %s of %s failed: %v", e.Op, e.Key, e.Err)
}

func (e *BuildCacheError) Unwrap() error {
	return e.Err
}

// IsNonFatalCacheError reports whether err is a cache backend failure that
// must not fail the build
func IsNonFatalCacheError(err error) bool {
	var cacheErr *BuildCacheError
	return errors.As(err, &cacheErr)
}

// DirectoryBuildCacheService keeps entries in a local directory using a
// {hash[0:2]}/{hash} layout. Entries are written to a temp file and
// renamed into place.
type DirectoryBuildCacheService struct {
	dir string
}

// NewDirectoryBuildCacheService creates the cache directory if needed
func NewDirectoryBuildCacheService(dir string) (*DirectoryBuildCacheService, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create build cache directory %s: %w", dir, err)
	}
	return &DirectoryBuildCacheService{dir: dir}, nil
}

func (s *DirectoryBuildCacheService) entryPath(key BuildCacheKey) string {
	h := key.String()
	return filepath.Join(s.dir, h[0:2], h)
}

// Load implements BuildCacheService
func (s *DirectoryBuildCacheService) Load(key BuildCacheKey, reader BuildCacheEntryReader) (bool, error) {
	file, err := os.Open(s.entryPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &BuildCacheError{Op: "load", Key: key, Err: err}
	}
	defer file.Close()

	if err := reader(file); err != nil {
		return true, err
	}
	return true, nil
}

// Store implements BuildCacheService
func (s *DirectoryBuildCacheService) Store(key BuildCacheKey, writer BuildCacheEntryWriter) error {
	path := s.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &BuildCacheError{Op: "store", Key: key, Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return &BuildCacheError{Op: "store", Key: key, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := writer(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return &BuildCacheError{Op: "store", Key: key, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &BuildCacheError{Op: "store", Key: key, Err: err}
	}
	return nil
}

// Close implements BuildCacheService
func (s *DirectoryBuildCacheService) Close() error {
	return nil
}

// ControlledBuildCacheService turns non-fatal failures of its delegate into
// misses and disables itself once maxFailures of them have occurred. Fatal
// errors are returned unchanged.
type ControlledBuildCacheService struct {
	delegate    BuildCacheService
	maxFailures int

	mu       sync.Mutex
	failures int
	disabled bool
}

// NewControlledBuildCacheService wraps delegate. maxFailures <= 0 disables
// caching on the first failure.
func NewControlledBuildCacheService(delegate BuildCacheService, maxFailures int) *ControlledBuildCacheService {
	return &ControlledBuildCacheService{delegate: delegate, maxFailures: maxFailures}
}

// Load implements BuildCacheService
func (s *ControlledBuildCacheService) Load(key BuildCacheKey, reader BuildCacheEntryReader) (bool, error) {
	if s.Disabled() {
		return false, nil
	}
	found, err := s.delegate.Load(key, reader)
	if err != nil && IsNonFatalCacheError(err) {
		s.recordFailure(err)
		return false, nil
	}
	return found, err
}

// Store implements BuildCacheService
func (s *ControlledBuildCacheService) Store(key BuildCacheKey, writer BuildCacheEntryWriter) error {
	if s.Disabled() {
		return nil
	}
	err := s.delegate.Store(key, writer)
	if err != nil && IsNonFatalCacheError(err) {
		s.recordFailure(err)
		return nil
	}
	return err
}

// Close implements BuildCacheService
func (s *ControlledBuildCacheService) Close() error {
	return s.delegate.Close()
}

// Disabled reports whether too many failures have occurred
func (s *ControlledBuildCacheService) Disabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled
}

// Failures returns the number of non-fatal failures seen
func (s *ControlledBuildCacheService) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *ControlledBuildCacheService) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	VerboseLog(1, "build cache failure %d: %v", s.failures, err)
	if !s.disabled && s.failures >= s.maxFailures {
		s.disabled = true
		VerboseLog(0, "build cache disabled after %d failures", s.failures)
	}
}
