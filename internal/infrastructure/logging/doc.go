// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Runtime components (code cache, loader, service registry, extension
// registry) receive a named child logger via Component and never construct
// their own; a nil *zap.Logger is always replaced with a no-op logger.
//
// Example Usage:
//
//	logger := logging.FromConfig("debug", true)
//	loaderLog := logger.Component("loader")
//	loaderLog.Info("Bundle started", zap.String("bundle", "org.example.core"))
package logging
