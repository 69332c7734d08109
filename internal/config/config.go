// Package config holds the process configuration of contentcache commands.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is read from the environment.
type Config struct {
	MaxSize    int           `env:"CACHE_MAX_SIZE" envDefault:"100"`
	DefaultTTL time.Duration `env:"CACHE_DEFAULT_TTL" envDefault:"5m"`

	// Backend selects the durable storage: memory, file or sqlite.
	Backend string `env:"CACHE_BACKEND" envDefault:"memory"`
	// Path is the directory (file) or database file (sqlite).
	Path string `env:"CACHE_PATH" envDefault:"data/cache"`
	// QuotaBytes caps durable storage; 0 disables the cap.
	QuotaBytes int64  `env:"CACHE_QUOTA_BYTES" envDefault:"5242880"`
	Prefix     string `env:"CACHE_PREFIX" envDefault:"cache:"`

	MetricsAddr string `env:"METRICS_ADDR" envDefault:":2112"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of memory, file, sqlite; got %q", c.Backend)
	}
	if c.MaxSize <= 0 {
		return fmt.Errorf("CACHE_MAX_SIZE must be positive, got %d", c.MaxSize)
	}
	if c.QuotaBytes < 0 {
		return fmt.Errorf("CACHE_QUOTA_BYTES must not be negative, got %d", c.QuotaBytes)
	}
	if c.Backend != BackendMemory && strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("CACHE_PATH is required for the %s backend", c.Backend)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel (debug, info, warn, error).
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}
