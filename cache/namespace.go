package cache

import (
	"strings"
	"time"
)

// Namespace is a view of a Store whose keys are prefixed with "<name>:".
//
// Namespaces share the store's capacity and eviction order: heavy use of one
// namespace can evict entries of another. Clear and Stats only see keys
// under the namespace prefix.
type Namespace[V any] struct {
	s      *Store[V]
	prefix string
}

// Name returns the namespace name without the trailing separator.
func (ns *Namespace[V]) Name() string { return strings.TrimSuffix(ns.prefix, ":") }

// Key returns the store key for k.
func (ns *Namespace[V]) Key(k string) string { return ns.prefix + k }

// Set stores v under k with the store's default TTL.
func (ns *Namespace[V]) Set(k string, v V) { ns.s.Set(ns.prefix+k, v) }

// SetWithTTL stores v under k with a per-entry TTL.
func (ns *Namespace[V]) SetWithTTL(k string, v V, ttl time.Duration) {
	ns.s.SetWithTTL(ns.prefix+k, v, ttl)
}

// Get returns the value for k, counting a hit.
func (ns *Namespace[V]) Get(k string) (V, bool) { return ns.s.Get(ns.prefix + k) }

// Has reports whether an unexpired entry exists for k.
func (ns *Namespace[V]) Has(k string) bool { return ns.s.Has(ns.prefix + k) }

// Delete removes k and reports whether it was present.
func (ns *Namespace[V]) Delete(k string) bool { return ns.s.Delete(ns.prefix + k) }

// UpdateTTL re-arms the expiry of k relative to its insertion time.
func (ns *Namespace[V]) UpdateTTL(k string, ttl time.Duration) bool {
	return ns.s.UpdateTTL(ns.prefix+k, ttl)
}

// Clear removes only the entries of this namespace.
func (ns *Namespace[V]) Clear() { ns.s.clearPrefix(ns.prefix) }

// Stats reports only the entries of this namespace. Keys are reported
// without the namespace prefix; MaxSize is the shared store capacity.
func (ns *Namespace[V]) Stats() Stats {
	st := ns.s.statsPrefix(ns.prefix)
	hits := make(map[string]int64, len(st.HitCount))
	for k, v := range st.HitCount {
		hits[strings.TrimPrefix(k, ns.prefix)] = v
	}
	last := make(map[string]time.Time, len(st.LastAccessed))
	for k, v := range st.LastAccessed {
		last[strings.TrimPrefix(k, ns.prefix)] = v
	}
	st.HitCount, st.LastAccessed = hits, last
	return st
}

// Keys returns the namespace's keys (unprefixed) in MRU -> LRU order.
func (ns *Namespace[V]) Keys() []string {
	keys := ns.s.keysPrefix(ns.prefix)
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, ns.prefix)
	}
	return keys
}

// DeleteFunc removes the namespace entries whose unprefixed key satisfies
// match and returns how many were removed.
func (ns *Namespace[V]) DeleteFunc(match func(k string) bool) int {
	return ns.s.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, ns.prefix) && match(key[len(ns.prefix):])
	})
}

// Store returns the underlying store.
func (ns *Namespace[V]) Store() *Store[V] { return ns.s }
