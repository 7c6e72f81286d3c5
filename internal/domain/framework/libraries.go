package framework

import (
	"fmt"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/codecache"
	"github.com/GriffinCanCode/AgentOS/platform/internal/shared/paths"
)

// LibraryFile is a native library shipped below a bundle's bin directory.
type LibraryFile struct {
	// Name is the logical library name, the file name without suffix
	Name string `json:"name"`
	// Path is the resource path inside the bundle
	Path string `json:"path"`
}

// ListLibraries returns the libraries below bin/ for the running platform,
// at any depth.
func (l *Loader) ListLibraries(b *Bundle) ([]LibraryFile, error) {
	s := b.Storage()
	if s == nil {
		return nil, nil
	}

	files, err := s.Glob(paths.BinPattern(codecache.LibrarySuffix()))
	if err != nil {
		return nil, fmt.Errorf("failed to list libraries of %s: %w", b.SymbolicName(), err)
	}

	libs := make([]LibraryFile, 0, len(files))
	for _, file := range files {
		name, ok := codecache.LogicalName(file)
		if !ok {
			continue
		}
		libs = append(libs, LibraryFile{Name: name, Path: file})
	}
	return libs, nil
}

// InstallLibraries makes every library of b known to the code cache. With
// copyFiles set, or for bundles that are not plain directories, the files are
// copied into the cache; otherwise their directory is registered in place.
// Libraries already known to the cache are left alone.
func (l *Loader) InstallLibraries(b *Bundle, copyFiles bool) error {
	libs, err := l.ListLibraries(b)
	if err != nil {
		return err
	}

	root, local := "", false
	if s := b.Storage(); s != nil {
		root, local = s.LocalDir()
	}

	for _, lib := range libs {
		if l.cache.HasLibrary(lib.Name) {
			l.logger.Debug("Library already installed",
				zap.String("bundle", b.SymbolicName()),
				zap.String("library", lib.Name))
			continue
		}

		if copyFiles || !local {
			if err := l.copyLibrary(b, lib); err != nil {
				return err
			}
			l.metrics.RecordLibraryInstall("copy")
			continue
		}

		l.cache.InstallLibraryDir(lib.Name, filepath.Join(root, filepath.FromSlash(path.Dir(lib.Path))))
		l.metrics.RecordLibraryInstall("in_place")
	}
	return nil
}

func (l *Loader) copyLibrary(b *Bundle, lib LibraryFile) error {
	rc, err := b.GetResource(lib.Path)
	if err != nil {
		return fmt.Errorf("failed to open library %s of %s: %w", lib.Path, b.SymbolicName(), err)
	}
	defer rc.Close()

	return l.cache.InstallLibrary(lib.Name, rc)
}

// GetPathForLibrary returns where the code cache keeps the named library.
func (l *Loader) GetPathForLibrary(name string) string {
	return l.cache.GetPathForLibrary(name)
}

// GetLibraryPathFor returns the path of the bundle's activator library.
func (l *Loader) GetLibraryPathFor(b *Bundle) string {
	return l.cache.GetPathForLibrary(b.ActivatorLibrary())
}
