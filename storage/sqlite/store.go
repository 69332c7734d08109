package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/IvanBrykalov/contentcache/storage"
	"github.com/IvanBrykalov/contentcache/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Options configures Open. Zero values are safe.
type Options struct {
	// MaxPages caps the database file via PRAGMA max_page_count
	// (0 = SQLite default). Writes past the cap fail with
	// storage.ErrQuotaExceeded.
	MaxPages int

	// Timeout bounds every statement. Default 2s.
	Timeout time.Duration

	// Logger receives read failures, which the Adapter contract turns into
	// misses. Nil discards.
	Logger *slog.Logger
}

// Store is a storage.Adapter persisting into the cache_kv table.
type Store struct {
	sqlDB   *sql.DB
	timeout time.Duration
	log     *slog.Logger
}

// Open opens and migrates a SQLite database at path.
func Open(path string, opt Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 2 * time.Second
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}

	journal := "WAL"
	if opt.MaxPages > 0 {
		// With a rollback journal the page cap is hit on the failing INSERT
		// instead of at a later checkpoint.
		journal = "DELETE"
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(" + journal + ")&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	if opt.MaxPages > 0 {
		dsn += fmt.Sprintf("&_pragma=max_page_count(%d)", opt.MaxPages)
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer is all SQLite can do anyway; a single connection also keeps
	// per-connection pragmas consistent.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, timeout: opt.Timeout, log: opt.Logger}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get returns the value stored under key. Read errors are logged and
// reported as a miss.
func (s *Store) Get(key string) (string, bool) {
	ctx, cancel := s.ctx()
	defer cancel()

	var v string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM cache_kv WHERE cache_key = ?`, key).Scan(&v)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn("sqlite get failed", "key", key, "err", err)
		}
		return "", false
	}
	return v, true
}

// Set upserts value under key. A full database maps to ErrQuotaExceeded.
func (s *Store) Set(key, value string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO cache_kv (cache_key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		    value = excluded.value,
		    updated_at = excluded.updated_at`,
		key,
		value,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		kind := storage.ErrUnavailable
		if isFull(err) {
			kind = storage.ErrQuotaExceeded
		}
		return &storage.Error{Op: "set", Key: key, Kind: kind, Err: err}
	}
	return nil
}

// Remove deletes key. Removing a missing key is a no-op.
func (s *Store) Remove(key string) {
	ctx, cancel := s.ctx()
	defer cancel()

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM cache_kv WHERE cache_key = ?`, key); err != nil {
		s.log.Warn("sqlite remove failed", "key", key, "err", err)
	}
}

// Keys returns the stored keys starting with prefix.
func (s *Store) Keys(prefix string) []string {
	ctx, cancel := s.ctx()
	defer cancel()

	// substr instead of LIKE: keys may contain % and _.
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT cache_key FROM cache_kv WHERE substr(cache_key, 1, length(?)) = ?`,
		prefix,
		prefix,
	)
	if err != nil {
		s.log.Warn("sqlite list keys failed", "prefix", prefix, "err", err)
		return nil
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			s.log.Warn("sqlite scan key failed", "err", err)
			return out
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("sqlite iterate keys failed", "err", err)
	}
	return out
}

// isFull reports whether err is SQLITE_FULL (max_page_count reached or disk full).
func isFull(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_FULL
	}
	return false
}

var _ storage.Adapter = (*Store)(nil)
