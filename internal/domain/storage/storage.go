package storage

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNotABundle is returned for locations that are neither a directory nor a
// zip archive.
var ErrNotABundle = errors.New("not a bundle location")

// Storage reads resources of one bundle.
type Storage interface {
	// Location is the directory or archive path the storage was opened from
	Location() string

	Open(path string) (io.ReadCloser, error)
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)

	// Walk returns the sorted paths of all files below dir
	Walk(dir string) ([]string, error)

	// Glob returns the sorted paths matching a doublestar pattern
	Glob(pattern string) ([]string, error)

	// LocalDir returns the bundle root on disk, if there is one
	LocalDir() (string, bool)

	Close() error
}

// Open opens the bundle stored at location.
func Open(location string) (Storage, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle %s: %w", location, err)
	}
	if info.IsDir() {
		return OpenDirectory(location)
	}
	if !IsArchive(location) {
		return nil, fmt.Errorf("%w: %s", ErrNotABundle, location)
	}
	return OpenArchive(location)
}

// IsArchive reports whether the file at path looks like a zip archive.
func IsArchive(path string) bool {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	return mtype.Is("application/zip")
}

// IsCandidate reports whether path could hold a bundle.
func IsCandidate(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir() || (info.Mode().IsRegular() && IsArchive(path))
}
