package incremental

// FileHasher computes the content hash of a regular file
type FileHasher interface {
	Hash(path string, metadata FileMetadataSnapshot) (HashCode, error)
}

// DefaultFileHasher hashes file contents on every call
type DefaultFileHasher struct {
	Algorithm *HashAlgorithm
}

// Hash implements FileHasher
func (h DefaultFileHasher) Hash(path string, _ FileMetadataSnapshot) (HashCode, error) {
	algorithm := h.Algorithm
	if algorithm == nil {
		algorithm = DefaultHashAlgorithm()
	}
	return HashFile(path, algorithm)
}

// FileHashEntry is a remembered file hash and the metadata it was computed for
type FileHashEntry struct {
	Algorithm    string
	Length       int64
	LastModified int64
	Hash         HashCode
}

// CachingFileHasher reuses a remembered hash while the file's length and
// modification time are unchanged
type CachingFileHasher struct {
	delegate  FileHasher
	algorithm string
	cache     PersistentIndexedCache[FileHashEntry]
}

// NewCachingFileHasher wraps a DefaultFileHasher for algorithm
func NewCachingFileHasher(algorithm *HashAlgorithm, cache PersistentIndexedCache[FileHashEntry]) *CachingFileHasher {
	if algorithm == nil {
		algorithm = DefaultHashAlgorithm()
	}
	return &CachingFileHasher{
		delegate:  DefaultFileHasher{Algorithm: algorithm},
		algorithm: algorithm.Name,
		cache:     cache,
	}
}

// Hash implements FileHasher. Cache failures are logged and fall back to
// hashing the file.
func (h *CachingFileHasher) Hash(path string, metadata FileMetadataSnapshot) (HashCode, error) {
	entry, found, err := h.cache.Get(path)
	if err != nil {
		VerboseLog(1, "file hash cache lookup failed for %s: %v", path, err)
	} else if found && entry.Algorithm == h.algorithm && entry.Length == metadata.Length && entry.LastModified == metadata.LastModified {
		DebugLog("hash", "cached hash for %s", path)
		return entry.Hash, nil
	}

	hash, err := h.delegate.Hash(path, metadata)
	if err != nil {
		return "", err
	}

	err = h.cache.Put(path, FileHashEntry{
		Algorithm:    h.algorithm,
		Length:       metadata.Length,
		LastModified: metadata.LastModified,
		Hash:         hash,
	})
	if err != nil {
		VerboseLog(1, "failed to remember hash for %s: %v", path, err)
	}
	return hash, nil
}
