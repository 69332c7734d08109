package storage

// Adapter is a uniform string key/value substrate.
// Implementations must be safe for concurrent use.
type Adapter interface {
	// Get returns the stored value and whether it exists.
	// Read failures are reported as a miss.
	Get(key string) (string, bool)

	// Set stores value under key. On failure it returns an *Error whose
	// kind is one of the sentinels in this package.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is a no-op.
	Remove(key string)

	// Keys lists stored keys starting with prefix ("" lists everything).
	// Order is unspecified.
	Keys(prefix string) []string
}

// probeKey is written and removed by Probe.
const probeKey = "__storage_probe__"

// Probe checks that a works by writing and removing a probe key.
// It returns an *Error of kind ErrUnavailable when the write fails.
func Probe(a Adapter) error {
	if a == nil {
		return &Error{Op: "probe", Kind: ErrUnavailable}
	}
	if err := a.Set(probeKey, probeKey); err != nil {
		return &Error{Op: "probe", Key: probeKey, Kind: ErrUnavailable, Err: err}
	}
	v, ok := a.Get(probeKey)
	a.Remove(probeKey)
	if !ok || v != probeKey {
		return &Error{Op: "probe", Key: probeKey, Kind: ErrUnavailable}
	}
	return nil
}
