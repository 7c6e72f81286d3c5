// Package storage gives bundles uniform read access to their resources.
//
// A bundle is either a plain directory or a zip archive. Both are addressed
// with slash-separated paths relative to the bundle root, for example
// "plugin.xml" or "bin/linux/core.so".
//
// Components:
//   - Directory: a bundle unpacked on disk, walked with fastwalk
//   - Archive: a zip-packaged bundle, read in place
//   - Open: picks the implementation for a location (stat + content sniffing)
//
// Archives have no on-disk library directory, so their libraries must be
// copied into the code cache before they can be loaded.
package storage
