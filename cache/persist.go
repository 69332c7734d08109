package cache

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/IvanBrykalov/contentcache/storage"
)

// Persisted layout, per cache key k under store prefix p:
//
//	p + "v:" + k  ->  {"data": V, "timestamp": insertedAtMillis, "hitCount": n}
//	p + "t:" + k  ->  absolute expiry in epoch millis, "0" for no TTL
//
// An entry is rehydrated only when both keys exist, the expiry parses and
// lies in the future, and the value decodes. Anything else is purged.

type keyspace struct{ prefix string }

func (ks keyspace) valuePrefix() string { return ks.prefix + "v:" }

func (ks keyspace) expiryPrefix() string { return ks.prefix + "t:" }

func (ks keyspace) value(key string) string { return ks.valuePrefix() + key }

func (ks keyspace) expiry(key string) string { return ks.expiryPrefix() + key }

type envelope[V any] struct {
	Data      V     `json:"data"`
	Timestamp int64 `json:"timestamp"`
	HitCount  int64 `json:"hitCount"`
}

func encodeEntry[V any](n *node[V]) (string, error) {
	b, err := json.Marshal(envelope[V]{Data: n.val, Timestamp: n.insertedAt.UnixMilli(), HitCount: n.hits})
	if err != nil {
		return "", &storage.Error{Op: "encode", Key: n.key, Kind: storage.ErrSerializationFailed, Err: err}
	}
	return string(b), nil
}

func expiryString(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// load rehydrates unexpired entries from storage. It runs once from New,
// before the writer goroutine starts.
func (s *Store[V]) load() {
	a := s.opt.Storage
	now := s.now()

	type loaded struct {
		key string
		env envelope[V]
		exp int64
	}
	var items []loaded
	purge := func(key string, err error) {
		if err != nil {
			s.log.Debug("purging persisted cache entry", "key", key, "err", err)
		}
		a.Remove(s.keys.value(key))
		a.Remove(s.keys.expiry(key))
	}

	vp := s.keys.valuePrefix()
	for _, vk := range a.Keys(vp) {
		key := vk[len(vp):]

		raw, ok := a.Get(s.keys.expiry(key))
		if !ok {
			purge(key, &storage.Error{Op: "load", Key: key, Kind: storage.ErrCorruptedEntry, Err: errors.New("missing expiry")})
			continue
		}
		exp, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || exp < 0 {
			purge(key, &storage.Error{Op: "load", Key: key, Kind: storage.ErrCorruptedEntry, Err: err})
			continue
		}
		if exp != 0 && exp <= now.UnixMilli() {
			purge(key, nil)
			continue
		}
		data, ok := a.Get(vk)
		if !ok {
			purge(key, nil)
			continue
		}
		var env envelope[V]
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			purge(key, &storage.Error{Op: "load", Key: key, Kind: storage.ErrCorruptedEntry, Err: err})
			continue
		}
		items = append(items, loaded{key: key, env: env, exp: exp})
	}

	// Expiry keys whose value key is gone.
	tp := s.keys.expiryPrefix()
	for _, tk := range a.Keys(tp) {
		if _, ok := a.Get(s.keys.value(tk[len(tp):])); !ok {
			a.Remove(tk)
		}
	}

	// Oldest first, so LRU order and capacity eviction keep the newest.
	sort.SliceStable(items, func(i, j int) bool { return items[i].env.Timestamp < items[j].env.Timestamp })

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		if s.len >= s.opt.MaxSize {
			if victim := s.pol.Victim(""); victim != nil {
				s.evictLocked(victim.(*node[V]), EvictCapacity)
			}
		}
		ins := time.UnixMilli(it.env.Timestamp)
		n := &node[V]{key: it.key, val: it.env.Data, insertedAt: ins, lastAccess: ins, hits: max(it.env.HitCount, 0)}
		s.insertLocked(n)
		if it.exp != 0 {
			n.expiresAt = time.UnixMilli(it.exp)
			s.armLocked(n, n.expiresAt.Sub(now))
		}
	}
	if len(items) > 0 {
		s.log.Debug("rehydrated cache entries", "count", s.len)
	}
	s.opt.Metrics.Size(s.len)
}

// -------------------- writer --------------------

type opKind int

const (
	opWrite  opKind = iota // write value + expiry
	opExpiry               // rewrite expiry only
	opRemove               // remove value + expiry
	opClear                // remove everything whose cache key starts with key
	opFlush                // barrier
)

type op struct {
	kind opKind
	key  string
	data string
	exp  string
	ver  uint64 // opWrite: entry write version
	done chan struct{}
}

// writer applies persistence operations in FIFO order on one goroutine so
// that callers never wait for storage I/O. The queue is unbounded: enqueue
// never blocks, which lets the store enqueue while holding its lock.
type writer struct {
	a    storage.Adapter
	keys keyspace

	// current reports whether a queued write is still the latest for a
	// resident key.
	current func(key string, ver uint64) bool
	// onQuota evicts one entry other than the given key from memory and
	// returns its key.
	onQuota func(exclude string) (string, bool)
	onError func(key string, err error)

	mu      sync.Mutex
	q       []op
	stopped bool

	wake   chan struct{}
	stop   chan struct{}
	exited chan struct{}
}

func newWriter(a storage.Adapter, keys keyspace, current func(string, uint64) bool, onQuota func(string) (string, bool), onError func(string, error)) *writer {
	return &writer{
		a:       a,
		keys:    keys,
		current: current,
		onQuota: onQuota,
		onError: onError,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
}

func (w *writer) enqueue(o op) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		if o.done != nil {
			close(o.done)
		}
		return
	}
	w.q = append(w.q, o)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writer) pop() (op, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.q) == 0 {
		return op{}, false
	}
	o := w.q[0]
	w.q[0] = op{}
	w.q = w.q[1:]
	return o, true
}

func (w *writer) loop() {
	defer close(w.exited)
	for {
		select {
		case <-w.wake:
		case <-w.stop:
			w.drain()
			return
		}
		w.drain()
	}
}

func (w *writer) drain() {
	for {
		o, ok := w.pop()
		if !ok {
			return
		}
		w.apply(o)
	}
}

// flush waits until every operation queued before the call is applied.
func (w *writer) flush() {
	done := make(chan struct{})
	w.enqueue(op{kind: opFlush, done: done})
	<-done
}

// close drains the queue and stops the goroutine. Later enqueues are dropped.
func (w *writer) close() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stop)
	<-w.exited
}

func (w *writer) apply(o op) {
	switch o.kind {
	case opWrite:
		w.write(o)
	case opExpiry:
		if err := w.a.Set(w.keys.expiry(o.key), o.exp); err != nil {
			w.onError(o.key, err)
		}
	case opRemove:
		w.remove(o.key)
	case opClear:
		for _, k := range w.a.Keys(w.keys.value(o.key)) {
			w.a.Remove(k)
		}
		for _, k := range w.a.Keys(w.keys.expiry(o.key)) {
			w.a.Remove(k)
		}
	case opFlush:
		close(o.done)
	}
}

// write stores value and expiry. On ErrQuotaExceeded it evicts the least
// recently used entry and retries exactly once; if that fails too the entry
// stays in memory only and no half-written pair is left behind. A write
// superseded since it was queued (entry deleted, evicted or rewritten) is
// dropped instead: nothing is evicted for it.
func (w *writer) write(o op) {
	err := w.put(o)
	if errors.Is(err, storage.ErrQuotaExceeded) {
		if !w.current(o.key, o.ver) {
			w.remove(o.key)
			return
		}
		if victim, ok := w.onQuota(o.key); ok {
			w.remove(victim)
		}
		err = w.put(o)
	}
	if err != nil {
		w.remove(o.key)
		w.onError(o.key, err)
	}
}

func (w *writer) put(o op) error {
	if err := w.a.Set(w.keys.value(o.key), o.data); err != nil {
		return err
	}
	return w.a.Set(w.keys.expiry(o.key), o.exp)
}

func (w *writer) remove(key string) {
	w.a.Remove(w.keys.value(key))
	w.a.Remove(w.keys.expiry(key))
}
