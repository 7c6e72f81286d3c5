package storage

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/zip"

	"github.com/GriffinCanCode/AgentOS/platform/internal/shared/paths"
)

// Archive is a bundle packaged as a zip file. An archive whose entries all
// live below a single top-level directory is rooted at that directory.
type Archive struct {
	location string
	reader   *zip.ReadCloser
	files    map[string]*zip.File // bundle-relative path -> entry
	names    []string             // sorted keys of files
}

// OpenArchive opens the zip bundle at location.
func OpenArchive(location string) (*Archive, error) {
	reader, err := zip.OpenReader(location)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle archive %s: %w", location, err)
	}

	prefix := commonPrefix(reader.File)
	a := &Archive{
		location: location,
		reader:   reader,
		files:    make(map[string]*zip.File),
	}
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.TrimPrefix(f.Name, prefix)
		clean, err := paths.CleanResource(name)
		if err != nil {
			// Entries escaping the archive root are never served
			continue
		}
		a.files[clean] = f
		a.names = append(a.names, clean)
	}
	sort.Strings(a.names)
	return a, nil
}

// commonPrefix returns "dir/" when every entry lives below dir.
func commonPrefix(files []*zip.File) string {
	var prefix string
	for i, f := range files {
		top, _, nested := strings.Cut(f.Name, "/")
		if !nested {
			return ""
		}
		if i == 0 {
			prefix = top
		} else if top != prefix {
			return ""
		}
	}
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (a *Archive) Location() string { return a.location }

func (a *Archive) LocalDir() (string, bool) { return "", false }

func (a *Archive) Close() error { return a.reader.Close() }

func (a *Archive) entry(resource string) (*zip.File, error) {
	clean, err := paths.CleanResource(resource)
	if err != nil {
		return nil, err
	}
	f, ok := a.files[clean]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: resource, Err: fs.ErrNotExist}
	}
	return f, nil
}

func (a *Archive) Open(resource string) (io.ReadCloser, error) {
	f, err := a.entry(resource)
	if err != nil {
		return nil, err
	}
	return f.Open()
}

func (a *Archive) Exists(resource string) bool {
	_, err := a.entry(resource)
	return err == nil
}

func (a *Archive) ReadFile(resource string) ([]byte, error) {
	rc, err := a.Open(resource)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (a *Archive) Walk(dir string) ([]string, error) {
	clean, err := paths.CleanResource(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, name := range a.names {
		if clean == "." || strings.HasPrefix(name, clean+"/") {
			files = append(files, name)
		}
	}
	return files, nil
}

func (a *Archive) Glob(pattern string) ([]string, error) {
	pattern = path.Clean(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	var matches []string
	for _, name := range a.names {
		if doublestar.MatchUnvalidated(pattern, name) {
			matches = append(matches, name)
		}
	}
	return matches, nil
}
