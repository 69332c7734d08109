package apicache

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/IvanBrykalov/contentcache/cache"
	"github.com/IvanBrykalov/contentcache/coalesce"
)

// Namespace is the store namespace holding API responses.
const Namespace = "api"

// Options configures a Cache. Zero values are safe:
//   - nil Policy => DefaultPolicy()
//   - nil Logger => discard
type Options struct {
	Policy *Policy
	Logger *slog.Logger
}

// Cache is the API response cache: a store namespace, a TTL policy keyed
// by route, and a coalescer so identical in-flight requests share one fetch.
// Safe for concurrent use.
type Cache[V any] struct {
	ns      *cache.Namespace[V]
	policy  *Policy
	flights coalesce.Group[V]
	log     *slog.Logger
}

// New returns an API cache storing into the "api" namespace of store.
func New[V any](store *cache.Store[V], opt Options) *Cache[V] {
	if opt.Policy == nil {
		opt.Policy = DefaultPolicy()
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	return &Cache[V]{
		ns:     store.Namespace(Namespace),
		policy: opt.Policy,
		log:    opt.Logger,
	}
}

// CacheResponse stores data for (route, params) with the route's TTL.
func (c *Cache[V]) CacheResponse(route string, params url.Values, data V) {
	c.ns.SetWithTTL(Key(route, params), data, c.policy.ResolveTTL(route))
}

// CachedResponse returns the cached response for (route, params).
func (c *Cache[V]) CachedResponse(route string, params url.Values) (V, bool) {
	return c.ns.Get(Key(route, params))
}

// InvalidateByPattern removes every cached response whose key contains
// substr and returns how many were removed. Matching is plain substring
// matching: "/characters" also hits "/characters/featured". Use
// InvalidateRoute for exact routes.
func (c *Cache[V]) InvalidateByPattern(substr string) int {
	n := c.ns.DeleteFunc(func(k string) bool { return strings.Contains(k, substr) })
	c.log.Debug("invalidated api responses", "pattern", substr, "count", n)
	return n
}

// InvalidateRoute removes the cached responses of the given routes, for
// any parameters, and returns how many were removed. "/characters" does not
// hit "/characters/featured".
func (c *Cache[V]) InvalidateRoute(routes ...string) int {
	want := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		want[r] = struct{}{}
	}
	n := c.ns.DeleteFunc(func(k string) bool {
		_, ok := want[route(k)]
		return ok
	})
	c.log.Debug("invalidated api routes", "routes", routes, "count", n)
	return n
}

// GetOrFetch is the cache-aside read path: it returns the cached response
// if present, otherwise joins the in-flight fetch for the same key, or
// starts one. A successful fetch is cached before any waiter is released.
//
// The fetch runs detached from ctx: if ctx is done GetOrFetch returns
// ctx.Err() but the fetch still completes and populates the cache.
// Errors are returned to every waiter and never cached.
func (c *Cache[V]) GetOrFetch(ctx context.Context, route string, params url.Values, fetch func(context.Context) (V, error)) (V, error) {
	key := Key(route, params)
	if v, ok := c.ns.Get(key); ok {
		return v, nil
	}

	f, started := c.flights.Register(ctx, key, func(ctx context.Context) (V, error) {
		v, err := fetch(ctx)
		if err != nil {
			c.log.Debug("api fetch failed", "key", key, "err", err)
			return v, err
		}
		c.ns.SetWithTTL(key, v, c.policy.ResolveTTL(route))
		return v, nil
	})
	if !started {
		c.log.Debug("joined in-flight api fetch", "key", key)
	}
	return f.Wait(ctx)
}

// Ongoing returns the in-flight fetch for (route, params), if any.
func (c *Cache[V]) Ongoing(route string, params url.Values) (*coalesce.Flight[V], bool) {
	return c.flights.Ongoing(Key(route, params))
}

// Clear removes every cached API response.
func (c *Cache[V]) Clear() { c.ns.Clear() }

// Stats reports the API namespace only.
func (c *Cache[V]) Stats() cache.Stats { return c.ns.Stats() }

// Policy returns the TTL policy in use.
func (c *Cache[V]) Policy() *Policy { return c.policy }
