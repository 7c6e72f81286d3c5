package config

import (
	"fmt"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/AgentOS/platform/internal/shared/paths"
)

// Config holds all runtime configuration.
type Config struct {
	Platform  PlatformConfig
	Logging   LogConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
}

// PlatformConfig holds bundle runtime configuration.
type PlatformConfig struct {
	Home             string   `envconfig:"PLATFORM_HOME" default:"."`
	PluginDirs       []string `envconfig:"PLATFORM_PLUGIN_DIRS"`
	CacheDir         string   `envconfig:"PLATFORM_CACHE_DIR"`
	CleanStart       bool     `envconfig:"PLATFORM_CLEAN_START" default:"false"`
	CopyLibraries    bool     `envconfig:"PLATFORM_COPY_LIBRARIES" default:"false"`
	ContributionFile string   `envconfig:"PLATFORM_CONTRIBUTION_FILE" default:"plugin.xml"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// ServerConfig holds the introspection server configuration.
type ServerConfig struct {
	Enabled bool   `envconfig:"SERVER_ENABLED" default:"false"`
	Port    string `envconfig:"PORT" default:"8090"`
	Host    string `envconfig:"HOST" default:"127.0.0.1"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Platform: PlatformConfig{
			Home:             ".",
			ContributionFile: paths.ContributionFile,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    "8090",
			Host:    "127.0.0.1",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

// PluginRoots returns the directories scanned for bundles: the home plugin
// directory followed by every configured extra directory.
func (p PlatformConfig) PluginRoots() []string {
	roots := []string{filepath.Join(p.Home, paths.PluginsDir)}
	for _, dir := range p.PluginDirs {
		if dir != "" {
			roots = append(roots, dir)
		}
	}
	return roots
}

// CachePath returns the code cache directory.
func (p PlatformConfig) CachePath() string {
	if p.CacheDir != "" {
		return p.CacheDir
	}
	return filepath.Join(p.Home, paths.CacheDir)
}
