package incremental

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// FileSystemLocationFingerprint is the normalized form of one snapshot entry
type FileSystemLocationFingerprint struct {
	NormalizedPath        string
	Type                  FileType
	NormalizedContentHash HashCode
}

// AppendToHasher folds the fingerprint into h
func (f FileSystemLocationFingerprint) AppendToHasher(h *Hasher) {
	h.PutString(f.NormalizedPath)
	h.PutHash(f.NormalizedContentHash)
}

// compareFingerprints orders by normalized path, then content hash
func compareFingerprints(a, b FileSystemLocationFingerprint) int {
	if a.NormalizedPath != b.NormalizedPath {
		if a.NormalizedPath < b.NormalizedPath {
			return -1
		}
		return 1
	}
	return a.NormalizedContentHash.Compare(b.NormalizedContentHash)
}

// RootHash is the Merkle hash of one root of a fingerprinted collection
type RootHash struct {
	Root string
	Hash HashCode
}

// FingerprintEntry pairs a fingerprint with its key
type FingerprintEntry struct {
	Key         string
	Fingerprint FileSystemLocationFingerprint
}

// FileCollectionFingerprint maps unique keys, the absolute paths of the
// entries, to their fingerprints. Insertion order is kept because the
// classpath policy compares by position. Root hashes are kept in root order
// and act as a cheap equality check.
type FileCollectionFingerprint struct {
	strategy     FingerprintingStrategyIdentifier
	keys         []string
	fingerprints map[string]FileSystemLocationFingerprint
	rootHashes   []RootHash
}

// EmptyFingerprint returns a fingerprint without entries
func EmptyFingerprint(strategy FingerprintingStrategyIdentifier) *FileCollectionFingerprint {
	return &FileCollectionFingerprint{
		strategy:     strategy,
		fingerprints: map[string]FileSystemLocationFingerprint{},
	}
}

// add records an entry unless the key is already present
func (f *FileCollectionFingerprint) add(key string, fingerprint FileSystemLocationFingerprint) bool {
	if _, exists := f.fingerprints[key]; exists {
		return false
	}
	f.keys = append(f.keys, key)
	f.fingerprints[key] = fingerprint
	return true
}

func (f *FileCollectionFingerprint) addRootHash(root string, hash HashCode) {
	f.rootHashes = append(f.rootHashes, RootHash{Root: root, Hash: hash})
}

// Strategy identifies the policy that produced the fingerprint
func (f *FileCollectionFingerprint) Strategy() FingerprintingStrategyIdentifier {
	return f.strategy
}

// Len returns the number of entries
func (f *FileCollectionFingerprint) Len() int {
	return len(f.keys)
}

// IsEmpty reports whether there are no entries
func (f *FileCollectionFingerprint) IsEmpty() bool {
	return len(f.keys) == 0
}

// Get looks up an entry by key
func (f *FileCollectionFingerprint) Get(key string) (FileSystemLocationFingerprint, bool) {
	fingerprint, ok := f.fingerprints[key]
	return fingerprint, ok
}

// Keys returns the keys in insertion order
func (f *FileCollectionFingerprint) Keys() []string {
	keys := make([]string, len(f.keys))
	copy(keys, f.keys)
	return keys
}

// Entries returns the entries in insertion order
func (f *FileCollectionFingerprint) Entries() []FingerprintEntry {
	entries := make([]FingerprintEntry, 0, len(f.keys))
	for _, key := range f.keys {
		entries = append(entries, FingerprintEntry{Key: key, Fingerprint: f.fingerprints[key]})
	}
	return entries
}

func (f *FileCollectionFingerprint) values() []FileSystemLocationFingerprint {
	values := make([]FileSystemLocationFingerprint, 0, len(f.keys))
	for _, key := range f.keys {
		values = append(values, f.fingerprints[key])
	}
	return values
}

// RootHashes returns the root hashes in root order
func (f *FileCollectionFingerprint) RootHashes() []RootHash {
	hashes := make([]RootHash, len(f.rootHashes))
	copy(hashes, f.rootHashes)
	return hashes
}

// sameRootHashes reports whether both fingerprints were built from roots
// with identical paths and hashes, in the same order
func (f *FileCollectionFingerprint) sameRootHashes(other *FileCollectionFingerprint) bool {
	if len(f.rootHashes) == 0 || len(f.rootHashes) != len(other.rootHashes) {
		return false
	}
	for i, root := range f.rootHashes {
		if root != other.rootHashes[i] {
			return false
		}
	}
	return true
}

// Hash folds all entries into one hash with the policy's ordering rule
func (f *FileCollectionFingerprint) Hash(algorithm *HashAlgorithm) (HashCode, error) {
	compare, err := CompareStrategyFor(f.strategy)
	if err != nil {
		return "", err
	}
	if algorithm == nil {
		algorithm = DefaultHashAlgorithm()
	}
	hasher := algorithm.NewHasher()
	compare.AppendToHasher(hasher, f.values())
	return hasher.Hash(), nil
}

type fingerprintWire struct {
	Strategy   string
	Entries    []FingerprintEntry
	RootHashes []RootHash
}

// GobEncode implements gob.GobEncoder
func (f *FileCollectionFingerprint) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	wire := fingerprintWire{
		Strategy:   string(f.strategy),
		Entries:    f.Entries(),
		RootHashes: f.rootHashes,
	}
	if err := gob.NewEncoder(&buf).Encode(&wire); err != nil {
		return nil, fmt.Errorf("failed to encode fingerprint: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder
func (f *FileCollectionFingerprint) GobDecode(data []byte) error {
	var wire fingerprintWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&wire); err != nil {
		return fmt.Errorf("failed to decode fingerprint: %w", err)
	}
	decoded := EmptyFingerprint(FingerprintingStrategyIdentifier(wire.Strategy))
	for _, entry := range wire.Entries {
		if !decoded.add(entry.Key, entry.Fingerprint) {
			return fmt.Errorf("failed to decode fingerprint: duplicate key %s", entry.Key)
		}
	}
	decoded.rootHashes = wire.RootHashes
	*f = *decoded
	return nil
}
