// Package paths provides the standardized on-disk layout of a platform
// installation and of a single bundle.
package paths

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Installation layout, relative to the platform home directory.
const (
	// PluginsDir contains one subdirectory (or zip archive) per bundle
	PluginsDir = "plugins"

	// CacheDir is the default code cache location
	CacheDir = "cache"
)

// Bundle layout, relative to a bundle root.
const (
	// BinDir contains the bundle's native libraries
	BinDir = "bin"

	// ContributionFile declares extension points and extensions
	ContributionFile = "plugin.xml"
)

// ManifestFiles lists the accepted manifest file names in lookup order.
var ManifestFiles = []string{
	"manifest.yaml",
	"manifest.yml",
	"manifest.toml",
	"manifest.json",
}

// BinPattern returns the glob matching every library file under BinDir.
func BinPattern(suffix string) string {
	return BinDir + "/**/*" + suffix
}

// CleanResource normalizes a bundle resource path to forward slashes without
// a leading separator, rejecting paths that escape the bundle root.
func CleanResource(resource string) (string, error) {
	if resource == "" {
		return "", fmt.Errorf("resource path cannot be empty")
	}
	cleaned := path.Clean(strings.TrimPrefix(filepath.ToSlash(resource), "/"))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("resource path %q escapes the bundle root", resource)
	}
	return cleaned, nil
}
