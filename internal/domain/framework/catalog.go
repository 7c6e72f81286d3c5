package framework

import (
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/codecache"
)

// Constructor creates a new instance of a class.
type Constructor func() any

// Library is a loaded library exposing named classes.
type Library interface {
	Name() string
	New(class string) (any, error)
	Classes() []string
}

// LibraryLoader opens the library installed at path.
type LibraryLoader interface {
	Load(name, path string) (Library, error)
}

// Catalog is a LibraryLoader backed by constructors compiled into the binary.
// Library names are matched the way the code cache matches them, so
// "org.example.core" and "org_example_core" are the same library.
type Catalog struct {
	mu        sync.RWMutex
	libraries map[string]*catalogLibrary
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{libraries: make(map[string]*catalogLibrary)}
}

// Register adds a class to a library. Registering the same class twice
// panics; registration happens during program initialization.
func (c *Catalog) Register(library, class string, ctor Constructor) {
	if library == "" || class == "" || ctor == nil {
		panic(fmt.Sprintf("invalid catalog registration %q/%q", library, class))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := codecache.Stem(library)
	lib, ok := c.libraries[key]
	if !ok {
		lib = &catalogLibrary{catalog: c, name: library, classes: make(map[string]Constructor)}
		c.libraries[key] = lib
	}
	if _, exists := lib.classes[class]; exists {
		panic(fmt.Sprintf("class '%s' already registered in library '%s'", class, library))
	}
	lib.classes[class] = ctor
}

// Libraries returns the sorted names of all registered libraries.
func (c *Catalog) Libraries() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.libraries))
	for _, lib := range c.libraries {
		names = append(names, lib.name)
	}
	sort.Strings(names)
	return names
}

// Load returns the library registered under name. path is where the code
// cache installed the library; it only appears in errors.
func (c *Catalog) Load(name, path string) (Library, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lib, ok := c.libraries[codecache.Stem(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s) is not in the catalog", ErrLibraryLoad, name, path)
	}
	return lib, nil
}

type catalogLibrary struct {
	catalog *Catalog
	name    string
	classes map[string]Constructor // protected by catalog.mu
}

func (l *catalogLibrary) Name() string { return l.name }

func (l *catalogLibrary) New(class string) (any, error) {
	l.catalog.mu.RLock()
	ctor, ok := l.classes[class]
	l.catalog.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrClassNotFound, class, l.name)
	}
	obj := ctor()
	if obj == nil {
		return nil, fmt.Errorf("%w: constructor of %s returned nil", ErrClassNotFound, class)
	}
	return obj, nil
}

func (l *catalogLibrary) Classes() []string {
	l.catalog.mu.RLock()
	defer l.catalog.mu.RUnlock()

	names := make([]string, 0, len(l.classes))
	for name := range l.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
