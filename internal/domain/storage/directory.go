package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/GriffinCanCode/AgentOS/platform/internal/shared/paths"
)

// Directory is a bundle unpacked on disk.
type Directory struct {
	root string
	fsys fs.FS
}

// OpenDirectory opens the bundle rooted at dir.
func OpenDirectory(dir string) (*Directory, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bundle directory %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotABundle, dir)
	}
	return &Directory{root: abs, fsys: os.DirFS(abs)}, nil
}

func (d *Directory) Location() string { return d.root }

func (d *Directory) LocalDir() (string, bool) { return d.root, true }

func (d *Directory) Close() error { return nil }

func (d *Directory) resolve(resource string) (string, error) {
	clean, err := paths.CleanResource(resource)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

func (d *Directory) Open(resource string) (io.ReadCloser, error) {
	full, err := d.resolve(resource)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (d *Directory) Exists(resource string) bool {
	full, err := d.resolve(resource)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

func (d *Directory) ReadFile(resource string) ([]byte, error) {
	full, err := d.resolve(resource)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// Walk lists the files below dir. A missing dir yields no files.
func (d *Directory) Walk(dir string) ([]string, error) {
	start, err := d.resolve(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(start); os.IsNotExist(err) {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		files []string
	)
	conf := fastwalk.Config{Follow: false}

	err = fastwalk.Walk(&conf, start, func(p string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		mu.Lock()
		files = append(files, filepath.ToSlash(rel))
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s in %s: %w", dir, d.root, err)
	}

	sort.Strings(files)
	return files, nil
}

func (d *Directory) Glob(pattern string) ([]string, error) {
	matches, err := doublestar.Glob(d.fsys, path.Clean(pattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}
