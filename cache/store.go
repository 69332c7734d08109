package cache

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/IvanBrykalov/contentcache/eviction"
	"github.com/IvanBrykalov/contentcache/eviction/lru"
	"github.com/IvanBrykalov/contentcache/storage"
)

// Store is an in-memory TTL + LRU cache with best-effort persistence into a
// storage.Adapter. All methods are safe for concurrent use by multiple
// goroutines; the index is guarded by a single mutex.
type Store[V any] struct {
	// ---- guarded by mu ----
	mu     sync.Mutex
	m      map[string]*node[V]
	head   *node[V] // MRU
	tail   *node[V] // LRU
	len    int
	seq    uint64
	closed bool

	pol eviction.StorePolicy
	opt Options[V]
	log *slog.Logger

	keys keyspace
	w    *writer
}

// New constructs a Store, probes its storage, rehydrates unexpired entries
// from it and starts the persistence writer.
func New[V any](opt Options[V]) *Store[V] {
	if opt.MaxSize <= 0 {
		opt.MaxSize = DefaultMaxSize
	}
	if opt.DefaultTTL == 0 {
		opt.DefaultTTL = DefaultTTL
	}
	if opt.Prefix == "" {
		opt.Prefix = DefaultPrefix
	}
	if opt.Policy == nil {
		opt.Policy = lru.New()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	if opt.Clock == nil {
		opt.Clock = wallClock{}
	}

	s := &Store[V]{
		m:    make(map[string]*node[V], opt.MaxSize),
		opt:  opt,
		log:  opt.Logger,
		keys: keyspace{prefix: opt.Prefix},
	}
	s.pol = opt.Policy.New(storeHooks[V]{s: s})

	if opt.Storage == nil {
		opt.Storage = storage.NewMemory()
	} else if err := storage.Probe(opt.Storage); err != nil {
		s.log.Warn("durable storage unavailable, falling back to memory", "err", err)
		opt.Metrics.StorageError(err)
		opt.Storage = storage.NewMemory()
	}
	s.opt.Storage = opt.Storage

	s.w = newWriter(opt.Storage, s.keys, s.current, s.evictForQuota, s.storageError)
	s.load()
	go s.w.loop()
	return s
}

// ---- Cache[V] implementation ----

// Set inserts or refreshes key using the default TTL.
func (s *Store[V]) Set(key string, v V) {
	ttl := s.opt.DefaultTTL
	if ttl < 0 {
		ttl = 0
	}
	s.SetWithTTL(key, v, ttl)
}

// SetWithTTL inserts or refreshes key with a per-entry TTL.
// A non-positive ttl disables TTL expiry for this entry.
//
// Inserting a new key into a full store first evicts one entry chosen by
// the policy. The persistent write is queued; SetWithTTL never waits for it.
func (s *Store[V]) SetWithTTL(key string, v V, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	now := s.now()
	n, ok := s.m[key]
	if ok {
		n.val = v
		n.insertedAt = now
		n.lastAccess = now
		s.setExpiryLocked(n, ttl)
		s.pol.OnUpdate(n)
	} else {
		if s.len >= s.opt.MaxSize {
			if victim := s.pol.Victim(""); victim != nil {
				s.evictLocked(victim.(*node[V]), EvictCapacity)
			}
		}
		n = &node[V]{key: key, val: v, insertedAt: now, lastAccess: now}
		s.insertLocked(n)
		s.setExpiryLocked(n, ttl)
	}
	s.persistLocked(n)
	s.opt.Metrics.Size(s.len)
}

// Get returns the value for key and a presence flag.
// An expired entry is removed and reported as absent.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	n, ok := s.m[key]
	if !ok || s.closed {
		s.opt.Metrics.Miss()
		return zero, false
	}
	now := s.now()
	if n.expired(now) {
		s.evictLocked(n, EvictTTL)
		s.opt.Metrics.Miss()
		s.opt.Metrics.Size(s.len)
		return zero, false
	}

	if now.After(n.lastAccess) {
		n.lastAccess = now
	}
	n.hits++
	s.pol.OnGet(n)
	s.opt.Metrics.Hit()
	return n.val, true
}

// Has reports whether an unexpired entry exists for key.
// It does not update access time, hit count or LRU order.
func (s *Store[V]) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.m[key]
	return ok && !s.closed && !n.expired(s.now())
}

// Delete removes key from memory and storage. It is idempotent and returns
// whether an entry was present.
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	n, ok := s.m[key]
	if ok {
		s.removeLocked(n)
		s.opt.Metrics.Size(s.len)
	}
	s.w.enqueue(op{kind: opRemove, key: key})
	return ok
}

// Clear stops every timer, empties the index and removes all persisted
// entries of this store.
func (s *Store[V]) Clear() { s.clearPrefix("") }

// UpdateTTL re-arms the expiry of an existing entry so that it expires ttl
// after it was inserted. Value, hit count and access time are unchanged.
// A non-positive ttl removes the TTL. It returns false if key is absent or
// already expired.
func (s *Store[V]) UpdateTTL(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	n, ok := s.m[key]
	if !ok {
		return false
	}
	now := s.now()
	if n.expired(now) {
		s.evictLocked(n, EvictTTL)
		s.opt.Metrics.Size(s.len)
		return false
	}

	n.stopTimer()
	n.gen++
	if ttl <= 0 {
		n.expiresAt = time.Time{}
	} else {
		n.expiresAt = n.insertedAt.Add(ttl)
		if !now.Before(n.expiresAt) {
			// The new TTL already elapsed.
			s.evictLocked(n, EvictTTL)
			s.opt.Metrics.Size(s.len)
			return true
		}
		s.armLocked(n, n.expiresAt.Sub(now))
	}
	s.w.enqueue(op{kind: opExpiry, key: key, exp: expiryString(n.expiresAt)})
	return true
}

// Stats reports size and hit statistics for the whole store.
func (s *Store[V]) Stats() Stats { return s.statsPrefix("") }

// ---- extras ----

// Len returns the number of resident entries, expired ones not yet
// collected included.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.len
}

// Keys returns resident keys in MRU -> LRU order.
func (s *Store[V]) Keys() []string { return s.keysPrefix("") }

// MaxSize returns the configured capacity.
func (s *Store[V]) MaxSize() int { return s.opt.MaxSize }

// DeleteFunc removes every entry whose key satisfies match and returns how
// many were removed.
func (s *Store[V]) DeleteFunc(match func(key string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}

	removed := 0
	for n := s.head; n != nil; {
		next := n.next
		if match(n.key) {
			s.removeLocked(n)
			s.w.enqueue(op{kind: opRemove, key: n.key})
			removed++
		}
		n = next
	}
	s.opt.Metrics.Size(s.len)
	return removed
}

// Namespace returns a view of the store whose keys are prefixed with
// "<name>:".
func (s *Store[V]) Namespace(name string) *Namespace[V] {
	return &Namespace[V]{s: s, prefix: name + ":"}
}

// Flush blocks until every queued persistent write has been applied.
func (s *Store[V]) Flush() { s.w.flush() }

// Close stops all timers, drains pending persistent writes and marks the
// store closed. Later operations are ignored. The storage adapter is not
// closed; it belongs to the caller.
func (s *Store[V]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for n := s.head; n != nil; n = n.next {
		n.stopTimer()
	}
	s.mu.Unlock()

	s.w.close()
	return nil
}

// ---- prefix-scoped helpers (used by Namespace) ----

func (s *Store[V]) clearPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for n := s.head; n != nil; {
		next := n.next
		if strings.HasPrefix(n.key, prefix) {
			s.removeLocked(n)
		}
		n = next
	}
	s.w.enqueue(op{kind: opClear, key: prefix})
	s.opt.Metrics.Size(s.len)
}

func (s *Store[V]) keysPrefix(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, s.len)
	for n := s.head; n != nil; n = n.next {
		if strings.HasPrefix(n.key, prefix) {
			out = append(out, n.key)
		}
	}
	return out
}

func (s *Store[V]) statsPrefix(prefix string) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		MaxSize:      s.opt.MaxSize,
		HitCount:     make(map[string]int64),
		LastAccessed: make(map[string]time.Time),
	}
	for n := s.head; n != nil; n = n.next {
		if !strings.HasPrefix(n.key, prefix) {
			continue
		}
		st.Size++
		st.TotalHits += n.hits
		st.HitCount[n.key] = n.hits
		st.LastAccessed[n.key] = n.lastAccess
	}
	if st.Size > 0 {
		st.AverageHits = float64(st.TotalHits) / float64(st.Size)
	}
	return st
}

// -------------------- internals (mu held) --------------------

func (s *Store[V]) now() time.Time { return s.opt.Clock.Now() }

// setExpiryLocked replaces n's expiry with ttl from its insertion time and
// re-arms its timer.
func (s *Store[V]) setExpiryLocked(n *node[V], ttl time.Duration) {
	n.stopTimer()
	n.gen++
	if ttl <= 0 {
		n.expiresAt = time.Time{}
		return
	}
	n.expiresAt = n.insertedAt.Add(ttl)
	s.armLocked(n, ttl)
}

func (s *Store[V]) armLocked(n *node[V], d time.Duration) {
	gen := n.gen
	n.timer = s.opt.Clock.AfterFunc(d, func() { s.expire(n, gen) })
}

// expire is the timer callback. It is a no-op if the entry was removed or
// rewritten after the timer was armed.
func (s *Store[V]) expire(n *node[V], gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.m[n.key] != n || n.gen != gen {
		return
	}
	n.timer = nil
	s.evictLocked(n, EvictTTL)
	s.opt.Metrics.Size(s.len)
}

func (s *Store[V]) insertLocked(n *node[V]) {
	s.seq++
	n.seq = s.seq
	s.m[n.key] = n
	s.pol.OnAdd(n)
}

// removeLocked drops n from the index and the list and stops its timer.
// It does not touch storage.
func (s *Store[V]) removeLocked(n *node[V]) {
	n.stopTimer()
	s.pol.OnRemove(n)
	s.unlink(n)
	delete(s.m, n.key)
}

// evictLocked removes n, queues removal of its persisted keys and reports
// the eviction.
func (s *Store[V]) evictLocked(n *node[V], reason EvictReason) {
	s.removeLocked(n)
	s.w.enqueue(op{kind: opRemove, key: n.key})
	s.opt.Metrics.Evict(reason)
	if cb := s.opt.OnEvict; cb != nil {
		cb(n.key, n.val, reason)
	}
}

// persistLocked encodes n and queues the write. Encoding failures keep the
// in-memory entry and drop any older persisted copy.
func (s *Store[V]) persistLocked(n *node[V]) {
	data, err := encodeEntry(n)
	if err != nil {
		s.storageError(n.key, err)
		s.w.enqueue(op{kind: opRemove, key: n.key})
		return
	}
	n.ver++
	s.w.enqueue(op{kind: opWrite, key: n.key, data: data, exp: expiryString(n.expiresAt), ver: n.ver})
}

// current reports whether the write with version ver is still the latest
// one queued for a resident key.
func (s *Store[V]) current(key string, ver uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.m[key]
	return ok && n.ver == ver
}

// evictForQuota is called by the writer when storage is full. It evicts the
// least recently used entry other than exclude and returns its key.
func (s *Store[V]) evictForQuota(exclude string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false
	}

	victim := s.pol.Victim(exclude)
	if victim == nil {
		return "", false
	}
	n := victim.(*node[V])
	s.evictLocked(n, EvictQuota)
	s.opt.Metrics.Size(s.len)
	return n.key, true
}

func (s *Store[V]) storageError(key string, err error) {
	s.log.Warn("cache persistence failed; entry kept in memory only", "key", key, "err", err)
	s.opt.Metrics.StorageError(err)
}

// insertFront inserts n at MRU in O(1).
func (s *Store[V]) insertFront(n *node[V]) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
}

// moveToFront promotes n to MRU in O(1).
func (s *Store[V]) moveToFront(n *node[V]) {
	if n == s.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

// unlink removes n from the list in O(1). Unlinking a node that is not in
// the list is a no-op.
func (s *Store[V]) unlink(n *node[V]) {
	if n.prev == nil && n.next == nil && s.head != n {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
}

// -------------------- policy hooks --------------------

// storeHooks adapts the store's list operations to eviction.Hooks.
// A nil *node is returned as a nil interface so policies can compare with nil.
type storeHooks[V any] struct{ s *Store[V] }

func (h storeHooks[V]) MoveToFront(x eviction.Node) { h.s.moveToFront(x.(*node[V])) }
func (h storeHooks[V]) PushFront(x eviction.Node)   { h.s.insertFront(x.(*node[V])) }
func (h storeHooks[V]) Remove(x eviction.Node)      { h.s.unlink(x.(*node[V])) }
func (h storeHooks[V]) Len() int                    { return h.s.len }

func (h storeHooks[V]) Back() eviction.Node {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}

func (h storeHooks[V]) Prev(x eviction.Node) eviction.Node {
	if p := x.(*node[V]).prev; p != nil {
		return p
	}
	return nil
}
