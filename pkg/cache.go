package incremental

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/vectorio"
	"golang.org/x/sync/singleflight"
	"golang.org/x/sys/unix"
)

// PersistentIndexedCache is a durable key-value store with unique keys.
//
// Get blocks while another caller is producing the same key. GetOrProduce
// runs producer at most once per key among concurrent callers, on the
// calling goroutine, and hands the produced value to all of them.
type PersistentIndexedCache[V any] interface {
	Get(key string) (V, bool, error)
	GetOrProduce(key string, producer func() (V, error)) (V, error)
	Put(key string, value V) error
	Remove(key string) error
}

// FilePersistentCache stores one gob-encoded entry per key under
// {dir}/{h[0:2]}/{h}, where h is the SHA-256 of the key. Readers take a
// shared flock on the directory's lock file and writers an exclusive one,
// so several processes can share a cache directory.
//
// GetOrProduce holds the exclusive lock while producing, so other
// processes wait rather than produce the same entry.
//
// Entry layout: magic(4) | key length(4) | payload length(4) | key | payload.
type FilePersistentCache[V any] struct {
	dir   string
	group singleflight.Group
}

type cacheLookup[V any] struct {
	value V
	found bool
}

// NewFilePersistentCache opens or creates a cache directory
func NewFilePersistentCache[V any](dir string) (*FilePersistentCache[V], error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &FilePersistentCache[V]{dir: dir}, nil
}

// Dir returns the cache directory
func (c *FilePersistentCache[V]) Dir() string {
	return c.dir
}

// Get returns the value stored under key
func (c *FilePersistentCache[V]) Get(key string) (V, bool, error) {
	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, found, err := c.read(key)
		if err != nil {
			return nil, err
		}
		return cacheLookup[V]{value: value, found: found}, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	lookup := result.(cacheLookup[V])
	return lookup.value, lookup.found, nil
}

// GetOrProduce returns the value stored under key, producing and storing it
// first if it is absent
func (c *FilePersistentCache[V]) GetOrProduce(key string, producer func() (V, error)) (V, error) {
	for {
		result, err, shared := c.group.Do(key, func() (interface{}, error) {
			unlock, err := c.lock(unix.LOCK_EX)
			if err != nil {
				return nil, err
			}
			defer unlock()

			value, found, err := c.readLocked(key)
			if err != nil {
				return nil, err
			}
			if found {
				return cacheLookup[V]{value: value, found: true}, nil
			}
			produced, err := producer()
			if err != nil {
				return nil, err
			}
			if err := c.writeLocked(key, produced); err != nil {
				return nil, err
			}
			return cacheLookup[V]{value: produced, found: true}, nil
		})
		if err != nil {
			var zero V
			return zero, err
		}
		lookup := result.(cacheLookup[V])
		if lookup.found {
			return lookup.value, nil
		}
		// Joined a plain Get that missed; try again as producer.
		DebugLog("cache", "retrying %q after shared miss (shared=%t)", key, shared)
	}
}

// Put stores value under key, replacing any previous value
func (c *FilePersistentCache[V]) Put(key string, value V) error {
	return c.write(key, value)
}

// Remove deletes the entry for key. A missing entry is not an error.
func (c *FilePersistentCache[V]) Remove(key string) error {
	unlock, err := c.lock(unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(c.entryPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cache entry %q: %w", key, err)
	}
	return nil
}

type cacheKeyItem struct {
	key string
}

// Keys lists the stored keys in sorted order
func (c *FilePersistentCache[V]) Keys() ([]string, error) {
	unlock, err := c.lock(unix.LOCK_SH)
	if err != nil {
		return nil, err
	}
	defer unlock()

	index := newSortedIndex[cacheKeyItem](16, func(item *cacheKeyItem) string { return item.key },
		func(item *cacheKeyItem) int { return len(item.key) })

	err = filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == CacheLockFile || filepath.Ext(d.Name()) == ".tmp" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		key, _, ok := parseCacheEntry(data)
		if !ok {
			VerboseLog(1, "skipping corrupt cache entry %s", path)
			return nil
		}
		index.Insert(&cacheKeyItem{key: key}, IndexedContext)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cache %s: %w", c.dir, err)
	}

	keys := make([]string, 0, index.Length())
	index.ForEach(func(item *cacheKeyItem, _ string) bool {
		keys = append(keys, item.key)
		return true
	})
	return keys, nil
}

func (c *FilePersistentCache[V]) entryPath(key string) string {
	h := HashStringToHexString(key, DefaultHashAlgorithm())
	return filepath.Join(c.dir, h[0:2], h)
}

func (c *FilePersistentCache[V]) lock(how int) (func(), error) {
	lockPath := filepath.Join(c.dir, CacheLockFile)
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache lock %s: %w", lockPath, err)
	}
	if err := unix.Flock(int(file.Fd()), how); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to lock cache %s: %w", c.dir, err)
	}
	return func() {
		unix.Flock(int(file.Fd()), unix.LOCK_UN)
		file.Close()
	}, nil
}

func (c *FilePersistentCache[V]) read(key string) (V, bool, error) {
	unlock, err := c.lock(unix.LOCK_SH)
	if err != nil {
		var zero V
		return zero, false, err
	}
	defer unlock()
	return c.readLocked(key)
}

// readLocked returns found=false for absent and for corrupt entries
func (c *FilePersistentCache[V]) readLocked(key string) (V, bool, error) {
	var zero V

	path := c.entryPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("failed to read cache entry %q: %w", key, err)
	}

	storedKey, payload, ok := parseCacheEntry(data)
	if !ok || storedKey != key {
		VerboseLog(1, "ignoring corrupt cache entry %s", path)
		return zero, false, nil
	}

	var value V
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&value); err != nil {
		VerboseLog(1, "ignoring undecodable cache entry %s: %v", path, err)
		return zero, false, nil
	}
	return value, true, nil
}

func parseCacheEntry(data []byte) (string, []byte, bool) {
	if len(data) < CacheEntryHeaderSize || string(data[0:4]) != CacheEntryMagic {
		return "", nil, false
	}
	keyLen := int(binary.BigEndian.Uint32(data[4:8]))
	payloadLen := int(binary.BigEndian.Uint32(data[8:12]))
	if len(data) != CacheEntryHeaderSize+keyLen+payloadLen {
		return "", nil, false
	}
	key := string(data[CacheEntryHeaderSize : CacheEntryHeaderSize+keyLen])
	return key, data[CacheEntryHeaderSize+keyLen:], true
}

func (c *FilePersistentCache[V]) write(key string, value V) error {
	unlock, err := c.lock(unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock()
	return c.writeLocked(key, value)
}

func (c *FilePersistentCache[V]) writeLocked(key string, value V) error {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(&value); err != nil {
		return fmt.Errorf("failed to encode cache entry %q: %w", key, err)
	}

	header := make([]byte, CacheEntryHeaderSize)
	copy(header[0:4], CacheEntryMagic)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(key)))
	binary.BigEndian.PutUint32(header[8:12], uint32(payload.Len()))

	path := c.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache shard: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache entry: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := writeVectored(tmp, header, []byte(key), payload.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache entry %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp cache entry: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to commit cache entry %q: %w", key, err)
	}
	return nil
}

// writeVectored writes all buffers with a single writev
func writeVectored(file *os.File, buffers ...[]byte) error {
	iovecs := make([]syscall.Iovec, 0, len(buffers))
	total := 0
	for _, b := range buffers {
		if len(b) == 0 {
			continue
		}
		iovecs = append(iovecs, syscall.Iovec{Base: &b[0], Len: uint64(len(b))})
		total += len(b)
	}
	if len(iovecs) == 0 {
		return nil
	}

	nw, err := vectorio.WritevRaw(uintptr(file.Fd()), iovecs)
	if err != nil {
		return fmt.Errorf("writev failed: %w", err)
	}
	if nw != total {
		return fmt.Errorf("write incomplete: wrote %d bytes, expected %d", nw, total)
	}
	return nil
}
