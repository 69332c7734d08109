// Package app wires the cache instances of one process from its
// configuration. There are no package-level caches: every consumer gets the
// instances it needs from an App.
package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/IvanBrykalov/contentcache/apicache"
	"github.com/IvanBrykalov/contentcache/cache"
	"github.com/IvanBrykalov/contentcache/internal/config"
	"github.com/IvanBrykalov/contentcache/internal/content"
	"github.com/IvanBrykalov/contentcache/metrics/prom"
	"github.com/IvanBrykalov/contentcache/storage"
	"github.com/IvanBrykalov/contentcache/storage/sqlite"
)

// sqlitePageSize is SQLite's default page size, used to turn a byte quota
// into max_page_count.
const sqlitePageSize = 4096

// App owns the caches of the content service. Values are raw JSON API
// payloads, so they persist without re-encoding.
type App struct {
	Config   config.Config
	Log      *slog.Logger
	Registry *prometheus.Registry

	Store       *cache.Store[json.RawMessage]
	API         *apicache.Cache[json.RawMessage]
	Components  *apicache.Components[json.RawMessage]
	Invalidator *content.Invalidator[json.RawMessage]

	storage      storage.Adapter
	closeStorage func() error
}

// NewLogger returns a text logger writing to w at the configured level.
func NewLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// New builds the storage backend, the metrics registry and the caches.
// Logger may be nil.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	adapter, closeStorage, err := openStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := prom.New(reg, "contentcache", "store", prometheus.Labels{"backend": cfg.Backend})

	store := cache.New[json.RawMessage](cache.Options[json.RawMessage]{
		MaxSize:    cfg.MaxSize,
		DefaultTTL: cfg.DefaultTTL,
		Storage:    adapter,
		Prefix:     cfg.Prefix,
		Metrics:    metrics,
		Logger:     logger.With("component", "cache"),
	})
	api := apicache.New(store, apicache.Options{Logger: logger.With("component", "apicache")})

	logger.Info("cache ready",
		"backend", cfg.Backend,
		"max_size", cfg.MaxSize,
		"default_ttl", cfg.DefaultTTL,
		"rehydrated", store.Len(),
	)

	return &App{
		Config:       cfg,
		Log:          logger,
		Registry:     reg,
		Store:        store,
		API:          api,
		Components:   apicache.NewComponents(store),
		Invalidator:  content.NewInvalidator(store, api, logger.With("component", "invalidator")),
		storage:      adapter,
		closeStorage: closeStorage,
	}, nil
}

// Close drains pending persistent writes and closes the storage backend.
func (a *App) Close() error {
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	if a.closeStorage != nil {
		if err := a.closeStorage(); err != nil {
			return fmt.Errorf("close storage: %w", err)
		}
	}
	return nil
}

// Storage returns the durable adapter selected by the configuration.
func (a *App) Storage() storage.Adapter { return a.storage }

func openStorage(cfg config.Config, logger *slog.Logger) (storage.Adapter, func() error, error) {
	switch cfg.Backend {
	case config.BackendFile:
		f, err := storage.NewFile(osfs.New(cfg.Path), "entries", cfg.QuotaBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("open file storage: %w", err)
		}
		return f, nil, nil

	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		s, err := sqlite.Open(cfg.Path, sqlite.Options{
			MaxPages: int(cfg.QuotaBytes / sqlitePageSize),
			Logger:   logger.With("component", "sqlite"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return s, s.Close, nil

	default:
		return storage.NewMemoryWithQuota(int(cfg.QuotaBytes)), nil, nil
	}
}
