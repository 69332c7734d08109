package apicache

import (
	"context"
	"time"

	"github.com/IvanBrykalov/contentcache/cache"
	"github.com/IvanBrykalov/contentcache/coalesce"
)

// ComponentNamespace is the store namespace holding computed components.
const ComponentNamespace = "component"

// Components caches derived values (rendered fragments, aggregates) under
// caller-chosen keys and TTLs, de-duplicating concurrent computations.
type Components[V any] struct {
	ns      *cache.Namespace[V]
	flights coalesce.Group[V]
}

// NewComponents returns a component cache in the "component" namespace of
// store.
func NewComponents[V any](store *cache.Store[V]) *Components[V] {
	return &Components[V]{ns: store.Namespace(ComponentNamespace)}
}

// GetOrCompute returns the cached value for key or computes it once,
// caching a successful result for ttl (non-positive: no TTL).
func (c *Components[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (V, error)) (V, error) {
	if v, ok := c.ns.Get(key); ok {
		return v, nil
	}
	return c.flights.Do(ctx, key, func(ctx context.Context) (V, error) {
		v, err := compute(ctx)
		if err == nil {
			c.ns.SetWithTTL(key, v, ttl)
		}
		return v, err
	})
}

// Get returns the cached component for key.
func (c *Components[V]) Get(key string) (V, bool) { return c.ns.Get(key) }

// Set caches v under key for ttl (non-positive: no TTL).
func (c *Components[V]) Set(key string, v V, ttl time.Duration) { c.ns.SetWithTTL(key, v, ttl) }

// Invalidate removes one component.
func (c *Components[V]) Invalidate(key string) bool { return c.ns.Delete(key) }

// Clear removes every component.
func (c *Components[V]) Clear() { c.ns.Clear() }

// Stats reports the component namespace only.
func (c *Components[V]) Stats() cache.Stats { return c.ns.Stats() }
