package cache

import "time"

// Cache is the narrow contract collaborators (HTTP transport, handlers)
// use. Both *Store and *Namespace implement it.
// All methods are safe for concurrent use by multiple goroutines.
type Cache[V any] interface {
	// Set inserts or refreshes key with the store's default TTL.
	Set(key string, v V)

	// SetWithTTL inserts or refreshes key with a per-entry TTL.
	// A non-positive ttl disables TTL expiry for this entry.
	SetWithTTL(key string, v V, ttl time.Duration)

	// Get returns the value for key. Expired entries are removed and
	// reported as absent. A hit updates the entry's access time and hit count.
	Get(key string) (V, bool)

	// Has reports whether an unexpired entry exists without touching its
	// access metadata.
	Has(key string) bool

	// Delete removes key. Deleting an absent key is a no-op returning false.
	Delete(key string) bool

	// UpdateTTL changes the TTL of an existing entry, keeping its value
	// and access statistics. It returns false if key is absent.
	UpdateTTL(key string, ttl time.Duration) bool

	// Clear removes every entry in scope.
	Clear()

	// Stats reports size and hit statistics for the entries in scope.
	Stats() Stats
}

var (
	_ Cache[any] = (*Store[any])(nil)
	_ Cache[any] = (*Namespace[any])(nil)
)
