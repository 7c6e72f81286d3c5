package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/codecache"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/manifest"
	"github.com/GriffinCanCode/AgentOS/platform/internal/shared/paths"
)

// Bundle describes a bundle fixture.
type Bundle struct {
	Name      string
	Requires  []string
	Activator string
	// Library overrides Bundle-ActivatorLibrary
	Library string
	Lazy    bool
	System  bool
	// Libraries are written as empty files below bin/
	Libraries []string
	// Contribution is written to plugin.xml when set
	Contribution string
	// Files are extra resources, path -> content
	Files map[string]string
}

// Manifest renders the bundle's manifest.yaml.
func (b Bundle) Manifest(t *testing.T) []byte {
	t.Helper()

	headers := map[string]any{manifest.SymbolicName: b.Name}
	if len(b.Requires) > 0 {
		headers[manifest.RequireBundle] = strings.Join(b.Requires, ", ")
	}
	if b.Activator != "" {
		headers[manifest.Activator] = b.Activator
	}
	if b.Library != "" {
		headers[manifest.ActivatorLibrary] = b.Library
	}
	if b.Lazy {
		headers[manifest.ActivationPolicy] = string(manifest.PolicyLazy)
	}
	if b.System {
		headers[manifest.SystemBundle] = true
	}

	data, err := yaml.Marshal(headers)
	require.NoError(t, err)
	return data
}

// LibraryPath returns the resource path of a library fixture.
func LibraryPath(name string) string {
	return paths.BinDir + "/" + codecache.FileName(name)
}

func (b Bundle) files(t *testing.T) map[string][]byte {
	files := map[string][]byte{"manifest.yaml": b.Manifest(t)}
	for _, lib := range b.Libraries {
		files[LibraryPath(lib)] = []byte("\x7fELF" + lib)
	}
	if b.Contribution != "" {
		files[paths.ContributionFile] = []byte(b.Contribution)
	}
	for name, content := range b.Files {
		files[name] = []byte(content)
	}
	return files
}

// WriteBundle writes b as directory dir/<Name> and returns its path.
func WriteBundle(t *testing.T, dir string, b Bundle) string {
	t.Helper()

	root := filepath.Join(dir, b.Name)
	for name, content := range b.files(t) {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, content, 0o644))
	}
	return root
}

// WriteZipBundle writes b as archive dir/<Name>.zip. With prefix set, every
// entry is nested below a top-level directory of that name.
func WriteZipBundle(t *testing.T, dir string, b Bundle, prefix string) string {
	t.Helper()

	files := b.files(t)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		entry := name
		if prefix != "" {
			entry = prefix + "/" + name
		}
		w, err := zw.Create(entry)
		require.NoError(t, err)
		_, err = w.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, b.Name+".zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}
