package incremental

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FileMetadataSnapshot is the metadata read for a location before hashing.
// LastModified and Length are always 0 for directories and missing files.
type FileMetadataSnapshot struct {
	Type         FileType
	LastModified int64 // milliseconds since the epoch
	Length       int64
}

// MissingMetadata describes a location that does not exist
var MissingMetadata = FileMetadataSnapshot{Type: Missing}

// StatMetadata reads the metadata of path, following symbolic links.
// A path that does not exist, including a dangling link, is reported as missing.
func StatMetadata(path string) (FileMetadataSnapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return MissingMetadata, nil
		}
		return FileMetadataSnapshot{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return metadataFromInfo(info), nil
}

func metadataFromInfo(info os.FileInfo) FileMetadataSnapshot {
	if info.IsDir() {
		return FileMetadataSnapshot{Type: Directory}
	}
	return FileMetadataSnapshot{
		Type:         RegularFile,
		LastModified: info.ModTime().UnixMilli(),
		Length:       info.Size(),
	}
}
