// Package config provides 12-factor configuration management for the bundle platform.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Platform: home directory, extra plugin directories, code cache location
//   - Logging: Log level and output format
//   - Server: optional introspection server (disabled by default)
//   - RateLimit: Per-IP rate limiting for the introspection server
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Scanning %v\n", cfg.Platform.PluginRoots())
//
// Environment Variables:
//   - PLATFORM_HOME, PLATFORM_PLUGIN_DIRS, PLATFORM_CACHE_DIR
//   - PLATFORM_CLEAN_START, PLATFORM_COPY_LIBRARIES, PLATFORM_CONTRIBUTION_FILE
//   - LOG_LEVEL, LOG_DEV
//   - SERVER_ENABLED, HOST, PORT
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
