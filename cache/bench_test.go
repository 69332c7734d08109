package cache

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
)

// benchmarkMix exercises a read/write mix against a warm store.
// Writes include JSON encoding and a queued persistent write, so the
// numbers are end-to-end rather than index-only.
func benchmarkMix(b *testing.B, readsPct int) {
	s := New[string](Options[string]{
		MaxSize: 100_000,
	})
	b.Cleanup(func() { _ = s.Close() })

	// Preload half the capacity to get a realistic hit-rate.
	for i := 0; i < 50_000; i++ {
		s.Set("k:"+strconv.Itoa(i), "v")
	}
	s.Flush()

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			if r.Intn(100) < readsPct {
				s.Get(k)
			} else {
				s.Set(k, "v")
			}
			i++
		}
	})
}

func BenchmarkStore_90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkStore_50r50w(b *testing.B) { benchmarkMix(b, 50) }

// BenchmarkStore_Has measures the read-only probe, which skips LRU
// promotion and stats updates.
func BenchmarkStore_Has(b *testing.B) {
	s := New[int](Options[int]{MaxSize: 1 << 16})
	b.Cleanup(func() { _ = s.Close() })
	for i := 0; i < 1<<16; i++ {
		s.Set(strconv.Itoa(i), i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Has(strconv.Itoa(i & (1<<16 - 1)))
	}
}
