package apicache

import (
	"net/url"
	"strings"
)

// Key builds the composite cache key for a route and its parameters:
// "<route>?<params>" with params URL-encoded and sorted by name, so the same
// request always maps to the same key regardless of parameter order.
// Without parameters the key is the route itself.
func Key(route string, params url.Values) string {
	q := params.Encode() // sorted by key
	if q == "" {
		return route
	}
	return route + "?" + q
}

// Params builds url.Values from alternating name/value pairs. A trailing
// name without a value is ignored.
func Params(kv ...string) url.Values {
	v := make(url.Values, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		v.Add(kv[i], kv[i+1])
	}
	return v
}

// route returns the route part of a key built by Key.
func route(key string) string {
	if i := strings.IndexByte(key, '?'); i >= 0 {
		return key[:i]
	}
	return key
}
