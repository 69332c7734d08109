// Package sqlite provides a durable storage.Adapter backed by a single
// SQLite table (modernc.org/sqlite, no cgo).
package sqlite
