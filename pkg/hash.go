package incremental

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// HashAlgorithm represents a hash algorithm configuration
type HashAlgorithm struct {
	Name    string
	TypeID  uint16
	Size    int
	NewFunc func() hash.Hash
}

// GetHashAlgorithm returns the hash algorithm configuration for the given name
func GetHashAlgorithm(name string) (*HashAlgorithm, error) {
	switch strings.ToLower(name) {
	case "sha1":
		return &HashAlgorithm{
			Name:    "sha1",
			TypeID:  HashTypeSHA1,
			Size:    HashSizeSHA1,
			NewFunc: sha1.New,
		}, nil
	case "sha256":
		return &HashAlgorithm{
			Name:    "sha256",
			TypeID:  HashTypeSHA256,
			Size:    HashSizeSHA256,
			NewFunc: sha256.New,
		}, nil
	case "sha512":
		return &HashAlgorithm{
			Name:    "sha512",
			TypeID:  HashTypeSHA512,
			Size:    HashSizeSHA512,
			NewFunc: sha512.New,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", name)
	}
}

// DefaultHashAlgorithm returns SHA-256, used whenever no algorithm is configured
func DefaultHashAlgorithm() *HashAlgorithm {
	algorithm, _ := GetHashAlgorithm("sha256")
	return algorithm
}

// NewHasher starts a streaming hash computation
func (a *HashAlgorithm) NewHasher() *Hasher {
	return &Hasher{h: a.NewFunc()}
}

// HashCode is an immutable hash value. The raw bytes are held in a string so
// the value is comparable and can key maps.
type HashCode string

// HashCodeFromBytes copies b into a HashCode
func HashCodeFromBytes(b []byte) HashCode {
	return HashCode(b)
}

// ParseHashCode decodes a hex string
func ParseHashCode(s string) (HashCode, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return HashCode(b), nil
}

// Bytes returns a copy of the raw hash bytes
func (h HashCode) Bytes() []byte {
	return []byte(h)
}

// String returns the lowercase hex encoding
func (h HashCode) String() string {
	return hex.EncodeToString([]byte(h))
}

// IsZero reports whether the hash is empty
func (h HashCode) IsZero() bool {
	return len(h) == 0
}

// Compare orders hashes bytewise
func (h HashCode) Compare(other HashCode) int {
	return bytes.Compare([]byte(h), []byte(other))
}

// MarshalText encodes the hash as hex
func (h HashCode) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hex hash
func (h *HashCode) UnmarshalText(text []byte) error {
	decoded, err := ParseHashCode(string(text))
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// Hasher accumulates typed values into a hash. Strings are length-prefixed
// so that adjacent values cannot run into each other.
type Hasher struct {
	h hash.Hash
}

// PutBytes appends length-prefixed raw bytes
func (h *Hasher) PutBytes(b []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(b)))
	h.h.Write(length[:])
	h.h.Write(b)
}

// PutString appends a length-prefixed UTF-8 string
func (h *Hasher) PutString(s string) {
	h.PutBytes([]byte(s))
}

// PutHash appends a hash value
func (h *Hasher) PutHash(code HashCode) {
	h.PutBytes([]byte(code))
}

// PutInt appends a fixed-width integer
func (h *Hasher) PutInt(v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	h.h.Write(buf[:])
}

// Hash finishes the computation
func (h *Hasher) Hash() HashCode {
	return HashCode(h.h.Sum(nil))
}

// Signature returns a constant hash identifying a kind of value.
// Signatures always use SHA-256 so they do not depend on configuration.
func Signature(name string) HashCode {
	hasher := DefaultHashAlgorithm().NewHasher()
	hasher.PutString("SIGNATURE")
	hasher.PutString(name)
	return hasher.Hash()
}

var (
	// DirSignature starts every directory hash
	DirSignature = Signature("DIR")

	// MissingFileSignature is the content hash of every missing location
	MissingFileSignature = Signature("MISSING_FILE")
)

// HashFile calculates the hash of a file using the specified algorithm
func HashFile(filePath string, algorithm *HashAlgorithm) (HashCode, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	hasher := algorithm.NewFunc()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", filePath, err)
	}

	return HashCode(hasher.Sum(nil)), nil
}

// HashStringToHexString calculates the hash of a string and returns it as a hex string
func HashStringToHexString(data string, algorithm *HashAlgorithm) string {
	hasher := algorithm.NewFunc()
	hasher.Write([]byte(data))
	return hex.EncodeToString(hasher.Sum(nil))
}
