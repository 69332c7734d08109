// Package coalesce de-duplicates concurrent producers keyed by request
// identity: while a producer for a key is in flight, every other caller for
// that key waits on the same Flight instead of starting its own.
package coalesce

import (
	"context"
	"fmt"
	"sync"
)

// Group tracks in-flight producers by key. The zero value is ready to use.
//
// Concurrency notes:
//   - The first caller for a key starts the producer; followers share its Flight.
//   - A Flight is removed from the group when it settles, success or failure,
//     so the next call after settlement always starts a fresh producer
//     instead of replaying an old error.
//   - Producers run on their own goroutine with a context detached from the
//     caller that started them. A caller that stops waiting (ctx done) does
//     not stop the producer; it still completes and its side effects
//     (e.g. populating a cache) still happen.
//   - The group imposes no timeout; that belongs to the producer.
type Group[V any] struct {
	mu sync.Mutex
	m  map[string]*Flight[V]
}

// Flight is one in-flight producer call.
type Flight[V any] struct {
	done chan struct{} // closed when val/err are published
	val  V
	err  error
}

// Done returns a channel closed when the flight settles.
func (f *Flight[V]) Done() <-chan struct{} { return f.done }

// Wait blocks until the flight settles or ctx is done.
func (f *Flight[V]) Wait(ctx context.Context) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Ongoing returns the in-flight call for key, if any.
func (g *Group[V]) Ongoing(key string) (*Flight[V], bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.m[key]
	return f, ok
}

// Register returns the in-flight call for key, starting fn if none exists.
// started reports whether this call started fn. ctx is only used for the
// values it carries; its cancellation is not propagated to fn.
func (g *Group[V]) Register(ctx context.Context, key string, fn func(context.Context) (V, error)) (f *Flight[V], started bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[string]*Flight[V])
	}
	if f, ok := g.m[key]; ok {
		g.mu.Unlock()
		return f, false
	}
	f = &Flight[V]{done: make(chan struct{})}
	g.m[key] = f
	g.mu.Unlock()

	go g.run(context.WithoutCancel(ctx), key, f, fn)
	return f, true
}

// Do runs fn at most once per key at a time and waits for the shared
// result. If ctx is done first, Do returns ctx.Err() while fn keeps running.
func (g *Group[V]) Do(ctx context.Context, key string, fn func(context.Context) (V, error)) (V, error) {
	f, _ := g.Register(ctx, key, fn)
	return f.Wait(ctx)
}

// Len returns the number of flights in progress.
func (g *Group[V]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}

func (g *Group[V]) run(ctx context.Context, key string, f *Flight[V], fn func(context.Context) (V, error)) {
	defer func() {
		if r := recover(); r != nil {
			var zero V
			f.val, f.err = zero, fmt.Errorf("coalesce: producer for %q panicked: %v", key, r)
		}
		// Deregister before waking waiters so a caller that observes the
		// result and retries starts a fresh flight.
		g.mu.Lock()
		if g.m[key] == f {
			delete(g.m, key)
		}
		g.mu.Unlock()
		close(f.done)
	}()

	f.val, f.err = fn(ctx)
}
