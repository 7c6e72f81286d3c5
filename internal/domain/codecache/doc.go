// Package codecache owns the directory that native bundle libraries are
// loaded from.
//
// A library is either staged into the cache directory (copied from a bundle,
// required when the bundle is packaged as an archive) or registered in place,
// in which case the bundle's own bin/ directory stays the authoritative
// location and nothing is copied.
//
// Library names are logical names such as "org.example.core". The file name
// replaces dots with underscores and appends the platform shared-library
// suffix, so "org.example.core" becomes "org_example_core.so" on Linux.
//
// Example Usage:
//
//	cache, err := codecache.New(cfg.Platform.CachePath(), logger)
//	err = cache.InstallLibrary("org.example.core", file)
//	path := cache.GetPathForLibrary("org.example.core")
//
// File operations are not synchronized; the bundle loader serializes them.
package codecache
