package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxSize != 100 || cfg.DefaultTTL != 5*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Backend != BackendMemory || cfg.Prefix != "cache:" || cfg.QuotaBytes != 5<<20 {
		t.Fatalf("unexpected storage defaults: %+v", cfg)
	}
	if l, _ := cfg.Level(); l != slog.LevelInfo {
		t.Fatalf("expected info level, got %v", l)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CACHE_MAX_SIZE", "500")
	t.Setenv("CACHE_DEFAULT_TTL", "90s")
	t.Setenv("CACHE_BACKEND", "sqlite")
	t.Setenv("CACHE_PATH", "/tmp/cache.db")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxSize != 500 || cfg.DefaultTTL != 90*time.Second || cfg.Backend != BackendSQLite {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if l, _ := cfg.Level(); l != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", l)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad int", map[string]string{"CACHE_MAX_SIZE": "many"}, "parse env:"},
		{"bad duration", map[string]string{"CACHE_DEFAULT_TTL": "soon"}, "parse env:"},
		{"unknown backend", map[string]string{"CACHE_BACKEND": "redis"}, "CACHE_BACKEND"},
		{"zero size", map[string]string{"CACHE_MAX_SIZE": "0"}, "CACHE_MAX_SIZE"},
		{"negative quota", map[string]string{"CACHE_QUOTA_BYTES": "-1"}, "CACHE_QUOTA_BYTES"},
		{"missing path", map[string]string{"CACHE_BACKEND": "file", "CACHE_PATH": " "}, "CACHE_PATH"},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}
