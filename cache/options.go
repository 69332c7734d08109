package cache

import (
	"log/slog"
	"time"

	"github.com/IvanBrykalov/contentcache/eviction"
	"github.com/IvanBrykalov/contentcache/storage"
)

const (
	// DefaultMaxSize is used when Options.MaxSize is not positive.
	DefaultMaxSize = 100
	// DefaultTTL is used when Options.DefaultTTL is zero.
	DefaultTTL = 5 * time.Minute
	// DefaultPrefix namespaces the store's keys inside its storage adapter.
	DefaultPrefix = "cache:"
)

// EvictReason explains why an entry was removed by the store itself.
type EvictReason int

const (
	// EvictCapacity: removed by the eviction policy to admit a new key.
	EvictCapacity EvictReason = iota
	// EvictTTL: expired, either by its timer or lazily on access.
	EvictTTL
	// EvictQuota: removed to free space in durable storage.
	EvictQuota
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictTTL:
		return "ttl"
	case EvictQuota:
		return "quota"
	default:
		return "unknown"
	}
}

// Metrics exposes store-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
	// StorageError is called for every persistence fault the store absorbed.
	StorageError(err error)
}

// Timer is a pending expiry callback.
type Timer interface {
	Stop() bool
}

// Clock is the store's source of time and its expiry scheduler.
// Tests substitute a virtual clock to advance time deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Options configures a Store. Zero values are safe;
// defaults are applied in New():
//   - MaxSize <= 0      => DefaultMaxSize
//   - DefaultTTL == 0   => DefaultTTL (negative disables the default TTL)
//   - nil Storage       => volatile storage.Memory
//   - empty Prefix      => DefaultPrefix
//   - nil Policy        => LRU
//   - nil Metrics       => NoopMetrics
//   - nil Logger        => discard
//   - nil Clock         => wall clock
type Options[V any] struct {
	// MaxSize is the entry count limit. The store evicts before inserting,
	// so it never holds more than MaxSize entries.
	MaxSize int

	// DefaultTTL applies to Set. SetWithTTL overrides it per entry.
	DefaultTTL time.Duration

	// Storage is the persistence substrate. It is probed once in New;
	// when the probe fails the store falls back to a volatile adapter for
	// its whole lifetime.
	Storage storage.Adapter

	// Prefix is prepended to every key written to Storage, so several
	// stores can share one substrate.
	Prefix string

	// Policy orders entries for capacity eviction; nil => LRU.
	Policy eviction.Policy

	// OnEvict is called for every eviction (not for Delete/Clear) under the
	// store lock; keep callbacks lightweight and do not call back into the store.
	OnEvict func(key string, v V, reason EvictReason)

	Metrics Metrics
	Logger  *slog.Logger

	// Clock overrides time and timers (tests). Nil => wall clock.
	Clock Clock
}
