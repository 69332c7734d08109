// Package cache provides a generic in-memory TTL + LRU store with
// best-effort persistence, namespace views and lightweight metrics hooks.
//
// Design
//
//   - Storage: a Store keeps a map[string]*node for lookups and an intrusive
//     MRU↔LRU doubly linked list for ordering, guarded by one mutex. The
//     list is manipulated through eviction.Hooks by the configured policy
//     (LRU by default). All operations are O(1) expected, except the
//     prefix-scoped ones (namespace Clear/Stats), which walk the list.
//
//   - Capacity: MaxSize is checked before inserting a new key, and exactly
//     one victim is evicted when the store is full, so the store never
//     holds more than MaxSize entries.
//
//   - TTL: every entry with a TTL gets a timer from the Clock that removes
//     it at its deadline. Get re-checks the deadline too, so an entry is
//     never served after it expired even if its timer has not fired yet.
//
//   - Persistence: writes are encoded as JSON and queued to a single writer
//     goroutine; Set/Delete never wait for storage. Quota errors evict the
//     least recently used entry and retry once; every other storage fault is
//     logged and counted and leaves the in-memory entry intact. On New,
//     unexpired entries are reloaded from storage and their timers re-armed.
//
//   - Namespaces: Store.Namespace(name) returns a view that prefixes keys
//     with "name:". Namespaces share capacity and eviction order.
//
// Basic usage
//
//	s := cache.New[string](cache.Options[string]{MaxSize: 1000})
//	defer s.Close()
//	s.SetWithTTL("char:2", "X", time.Second)
//	if v, ok := s.Get("char:2"); ok {
//	    _ = v // use value
//	}
//
// With durable storage
//
//	fs, _ := storage.NewFile(osfs.New("/var/cache/app"), "entries", 5<<20)
//	s := cache.New[json.RawMessage](cache.Options[json.RawMessage]{Storage: fs})
//
// Exporting metrics (Prometheus adapter)
//
//	m := prom.New(nil, "contentcache", "store", nil) // implements Metrics
//	s := cache.New[string](cache.Options[string]{Metrics: m})
package cache
