// Package manifest parses bundle manifests.
//
// A manifest is a flat document of OSGi-style headers. The same headers can
// be written in YAML, TOML or JSON:
//
//	Bundle-SymbolicName: org.example.feature
//	Bundle-Name: Example Feature
//	Bundle-Activator: FeatureActivator
//	Bundle-ActivationPolicy: lazy
//	Require-Bundle: org.example.core, org.example.util;bundle-version="1.0"
//
// Header lookup is case-insensitive. A parsed Manifest is immutable.
package manifest
