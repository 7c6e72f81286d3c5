package framework

import (
	"fmt"
	"strings"
	"sync"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/codecache"
)

// ClassLoader loads the libraries of one bundle and instantiates classes
// from them. Loaded libraries are kept for the lifetime of the bundle.
type ClassLoader struct {
	bundle string
	cache  *codecache.Cache
	loader LibraryLoader

	mu        sync.Mutex
	libraries map[string]Library
}

func newClassLoader(bundle string, cache *codecache.Cache, loader LibraryLoader) *ClassLoader {
	return &ClassLoader{
		bundle:    bundle,
		cache:     cache,
		loader:    loader,
		libraries: make(map[string]Library),
	}
}

// LoadLibrary opens a library installed in the code cache.
func (c *ClassLoader) LoadLibrary(name string) (Library, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := codecache.Stem(name)
	if lib, ok := c.libraries[key]; ok {
		return lib, nil
	}

	path := c.cache.GetPathForLibrary(name)
	if !c.cache.HasLibrary(name) {
		return nil, &LibraryError{
			Bundle:  c.bundle,
			Library: name,
			Err:     fmt.Errorf("%w: %s is not installed", ErrLibraryLoad, path),
		}
	}
	if c.loader == nil {
		return nil, &LibraryError{Bundle: c.bundle, Library: name, Err: fmt.Errorf("%w: no library loader", ErrLibraryLoad)}
	}

	lib, err := c.loader.Load(name, path)
	if err != nil {
		return nil, &LibraryError{Bundle: c.bundle, Library: name, Err: err}
	}
	c.libraries[key] = lib
	return lib, nil
}

// NewInstance creates class from library.
func (c *ClassLoader) NewInstance(library, class string) (any, error) {
	lib, err := c.LoadLibrary(library)
	if err != nil {
		return nil, err
	}
	obj, err := lib.New(class)
	if err != nil {
		return nil, &LibraryError{Bundle: c.bundle, Library: library, Class: class, Err: err}
	}
	return obj, nil
}

// Loaded returns the names of the libraries opened so far.
func (c *ClassLoader) Loaded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.libraries))
	for _, lib := range c.libraries {
		names = append(names, lib.Name())
	}
	return names
}

// splitClass splits "library:Class" into its parts. A plain class name
// belongs to defaultLibrary.
func splitClass(qualified, defaultLibrary string) (library, class string) {
	if lib, cls, ok := strings.Cut(qualified, ":"); ok && lib != "" && cls != "" {
		return lib, cls
	}
	return defaultLibrary, qualified
}
