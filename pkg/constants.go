package incremental

import (
	"strings"
)

// State directory layout
const (
	StateDir        = ".fpdiff"
	ConfigFile      = "config"
	PatternFile     = "patterns"
	FingerprintsDir = "fingerprints"
	FileHashesDir   = "file-hashes"
	BuildCacheDir   = "build-cache"
)

// Hash type constants
const (
	HashTypeSHA1   uint16 = 1 // SHA-1 (20 bytes)
	HashTypeSHA256 uint16 = 2 // SHA-256 (32 bytes)
	HashTypeSHA512 uint16 = 3 // SHA-512 (64 bytes)
)

// Hash size constants
const (
	HashSizeSHA1   = 20
	HashSizeSHA256 = 32
	HashSizeSHA512 = 64
)

// HashTypeName returns the human-readable name for a hash type
func HashTypeName(hashType uint16) string {
	switch hashType {
	case HashTypeSHA1:
		return "sha1"
	case HashTypeSHA256:
		return "sha256"
	case HashTypeSHA512:
		return "sha512"
	default:
		return "unknown"
	}
}

// HashTypeFromName returns the hash type constant from a name (case-insensitive)
func HashTypeFromName(name string) (uint16, bool) {
	switch strings.ToLower(name) {
	case "sha1":
		return HashTypeSHA1, true
	case "sha256":
		return HashTypeSHA256, true
	case "sha512":
		return HashTypeSHA512, true
	default:
		return 0, false
	}
}

// FileType is the kind of file system location a snapshot or fingerprint describes.
type FileType int

const (
	RegularFile FileType = iota
	Directory
	Missing
)

func (t FileType) String() string {
	switch t {
	case RegularFile:
		return "file"
	case Directory:
		return "directory"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// Skiplist contexts
const (
	UnaccountedContext = "unaccounted"
	AccountedContext   = "accounted"
	IndexedContext     = "indexed"
)

// Persistent cache entry format
const (
	CacheEntryMagic      = "fpc1"
	CacheEntryHeaderSize = 12 // magic(4) + key length(4) + payload length(4)
	CacheLockFile        = "cache.lock"
)
