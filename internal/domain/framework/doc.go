// Package framework implements bundles and the loader that manages them.
//
// A bundle is a directory or zip archive holding a manifest, an optional
// contribution file and a bin/ directory of libraries. Bundles move through
// a small state machine:
//
//	INSTALLED -> RESOLVED -> STARTING -> ACTIVE -> STOPPING -> RESOLVED
//
// Resolution checks that every bundle named in Require-Bundle is installed
// and resolvable. The whole dependency closure is validated before any state
// changes, so a missing dependency or a cycle leaves every bundle as it was.
//
// Starting a bundle starts its dependencies first, then loads the activator
// class from the bundle's library and calls its Start hook with the bundle's
// execution Context. Activators publish and consume services through that
// Context.
//
// Libraries are not loaded from disk. A Catalog maps library names to the
// constructors compiled into the binary, and the code cache decides which
// libraries are installed:
//
//	catalog := framework.NewCatalog()
//	catalog.Register("org.example.core", "CoreActivator", func() any { return &coreActivator{} })
//
// The symbolic name "system.bundle" always denotes the system bundle, which
// is started before any other bundle and stopped last.
package framework
