package codecache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Cache maps logical library names to files on disk.
type Cache struct {
	dir    string
	logger *zap.Logger

	mu       sync.RWMutex
	external map[string]string // file stem -> directory, protected by mu
}

// New creates a cache rooted at dir, creating the directory if needed.
func New(dir string, logger *zap.Logger) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("code cache directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create code cache %s: %w", dir, err)
	}
	return &Cache{
		dir:      dir,
		logger:   logger,
		external: make(map[string]string),
	}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// LibrarySuffix returns the shared-library suffix of the running platform.
func LibrarySuffix() string {
	switch runtime.GOOS {
	case "darwin", "ios":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// Stem returns the file stem of a logical library name. Names that differ
// only in dots versus underscores denote the same library.
func Stem(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// FileName returns the on-disk file name for a logical library name.
func FileName(name string) string {
	return Stem(name) + LibrarySuffix()
}

// LogicalName strips the directory and the platform suffix from a library
// file path. The second result is false when the file is not a library.
func LogicalName(file string) (string, bool) {
	base := filepath.Base(file)
	suffix := LibrarySuffix()
	if !strings.HasSuffix(base, suffix) || len(base) == len(suffix) {
		return "", false
	}
	return strings.TrimSuffix(base, suffix), true
}

// HasLibrary reports whether name is staged in the cache or registered in
// place.
func (c *Cache) HasLibrary(name string) bool {
	c.mu.RLock()
	_, ok := c.external[Stem(name)]
	c.mu.RUnlock()
	if ok {
		return true
	}

	info, err := os.Stat(filepath.Join(c.dir, FileName(name)))
	return err == nil && info.Mode().IsRegular()
}

// InstallLibrary copies r into the cache, truncating any existing file.
func (c *Cache) InstallLibrary(name string, r io.Reader) error {
	if name == "" {
		return fmt.Errorf("library name cannot be empty")
	}

	target := filepath.Join(c.dir, FileName(name))
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("failed to install library %s: %w", name, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to install library %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to install library %s: %w", name, err)
	}

	c.logger.Debug("Library staged", zap.String("library", name), zap.String("path", target))
	return nil
}

// InstallLibraryDir registers dir as the authoritative location of name.
// Nothing is copied.
func (c *Cache) InstallLibraryDir(name, dir string) {
	c.mu.Lock()
	c.external[Stem(name)] = dir
	c.mu.Unlock()

	c.logger.Debug("Library registered in place", zap.String("library", name), zap.String("dir", dir))
}

// UnInstallLibrary removes the in-place registration of name if there is one,
// otherwise it deletes the staged file. Removing an absent library is not an
// error.
func (c *Cache) UnInstallLibrary(name string) error {
	c.mu.Lock()
	_, ok := c.external[Stem(name)]
	delete(c.external, Stem(name))
	c.mu.Unlock()
	if ok {
		return nil
	}

	err := os.Remove(filepath.Join(c.dir, FileName(name)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to uninstall library %s: %w", name, err)
	}
	return nil
}

// GetPathForLibrary returns where name is loaded from. The file does not have
// to exist.
func (c *Cache) GetPathForLibrary(name string) string {
	c.mu.RLock()
	dir, ok := c.external[Stem(name)]
	c.mu.RUnlock()
	if !ok {
		dir = c.dir
	}
	return filepath.Join(dir, FileName(name))
}

// Libraries returns the sorted file stems of every known library.
func (c *Cache) Libraries() []string {
	seen := make(map[string]struct{})

	c.mu.RLock()
	for name := range c.external {
		seen[name] = struct{}{}
	}
	c.mu.RUnlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Warn("Failed to list code cache", zap.String("dir", c.dir), zap.Error(err))
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name, ok := LogicalName(entry.Name()); ok {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear deletes every entry of the cache directory and forgets in-place
// registrations.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.external = make(map[string]string)
	c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read code cache %s: %w", c.dir, err)
	}

	var errs []error
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to clear code cache: %w", errors.Join(errs...))
	}

	c.logger.Info("Code cache cleared", zap.String("dir", c.dir), zap.Int("entries", len(entries)))
	return nil
}
