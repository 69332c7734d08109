// Package apicache specializes a cache.Store for API responses by
// composition: a store namespace, a route TTL Policy and a coalesce.Group.
//
//	store := cache.New[json.RawMessage](cache.Options[json.RawMessage]{MaxSize: 500})
//	api := apicache.New(store, apicache.Options{})
//	body, err := api.GetOrFetch(ctx, "/characters", apicache.Params("page", "1"), fetch)
//
// Keys are "<route>?<sorted params>", so invalidation can target a route
// exactly (InvalidateRoute) or by substring (InvalidateByPattern).
package apicache
