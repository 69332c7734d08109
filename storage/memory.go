package storage

import (
	"strings"
	"sync"
)

// Memory is a volatile, process-local Adapter.
// A positive MaxBytes caps the sum of len(key)+len(value) over all entries;
// writes beyond it fail with ErrQuotaExceeded.
type Memory struct {
	mu       sync.RWMutex
	m        map[string]string
	used     int
	maxBytes int
}

// NewMemory returns an empty volatile adapter without a quota.
func NewMemory() *Memory { return NewMemoryWithQuota(0) }

// NewMemoryWithQuota returns an empty volatile adapter capped at maxBytes
// (<= 0 disables the quota).
func NewMemoryWithQuota(maxBytes int) *Memory {
	return &Memory{m: make(map[string]string), maxBytes: maxBytes}
}

// Get returns the value stored under key.
func (s *Memory) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Set stores value under key, failing with ErrQuotaExceeded when the write
// would exceed the quota.
func (s *Memory) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used + len(key) + len(value)
	if old, ok := s.m[key]; ok {
		used -= len(key) + len(old)
	}
	if s.maxBytes > 0 && used > s.maxBytes {
		return &Error{Op: "set", Key: key, Kind: ErrQuotaExceeded}
	}
	s.m[key] = value
	s.used = used
	return nil
}

// Remove deletes key. Removing a missing key is a no-op.
func (s *Memory) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.m[key]; ok {
		s.used -= len(key) + len(old)
		delete(s.m, key)
	}
}

// Keys returns the stored keys starting with prefix, in no particular order.
func (s *Memory) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.m))
	for k := range s.m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// Len returns the number of stored keys.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Used returns the number of bytes counted against the quota.
func (s *Memory) Used() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

var _ Adapter = (*Memory)(nil)
