// Package storage defines the string key/value substrate a cache.Store
// persists into, plus the volatile and file-backed implementations.
//
// Adapters never panic on write: substrate failures are reported through
// the sentinel kinds in errors.go (ErrQuotaExceeded, ErrSerializationFailed,
// ErrUnavailable, ErrCorruptedEntry) wrapped in *Error. Reads report a miss
// instead of an error.
//
// Available adapters:
//
//   - Memory: process-local map, optional byte quota.
//   - File:   one file per key on a billy.Filesystem (osfs or memfs).
//   - sqlite.Store (subpackage sqlite): a single SQLite table.
//
// A durable adapter is checked once with Probe before use; a failing probe
// means the caller should fall back to NewMemory.
package storage
