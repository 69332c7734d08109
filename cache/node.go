package cache

import "time"

// node is an intrusive doubly linked list element owned by a Store.
// It stores the key/value alongside list links and the metadata used for
// TTL expiry, LRU ordering and hit statistics.
type node[V any] struct {
	key string
	val V

	// Intrusive list links: head is MRU, tail is LRU.
	prev *node[V]
	next *node[V]

	insertedAt time.Time
	// Absolute expiry; zero means no TTL.
	expiresAt  time.Time
	lastAccess time.Time
	hits       int64

	// Insertion sequence, only used to order rehydrated entries.
	seq uint64

	// Pending expiry timer and its generation. A timer callback whose
	// generation no longer matches belongs to an older write and does nothing.
	timer Timer
	gen   uint64

	// Version of the last queued persistent write.
	ver uint64
}

// Key implements eviction.Node.
func (n *node[V]) Key() string { return n.key }

func (n *node[V]) expired(now time.Time) bool {
	return !n.expiresAt.IsZero() && !now.Before(n.expiresAt)
}

func (n *node[V]) stopTimer() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
