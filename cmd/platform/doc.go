// Package main is the entry point of the bundle platform.
//
// The platform discovers bundles below <home>/plugins and every extra plugin
// directory, resolves their Require-Bundle dependencies, reads their
// contributions into the extension registry and starts every bundle whose
// activation policy is not lazy.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Scan ./plugins and exit after printing the bundle table
//	./platform -home . -list
//
//	# Keep running with the introspection server on :8090
//	./platform -home /opt/app -plugins /srv/plugins -server
//
//	# Development mode (colored logs, debug level)
//	./platform -dev -clean
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
