package cache

import (
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/IvanBrykalov/contentcache/storage"
)

// A mixed workload of concurrent Set/Get/SetWithTTL/Delete/UpdateTTL on
// random keys, with real timers and a persistence writer running.
// Should pass under `-race` without detector reports.
func TestRace_Basic(t *testing.T) {
	mem := storage.NewMemoryWithQuota(64 << 10)
	s := New[string](Options[string]{
		MaxSize: 512,
		Storage: mem,
	})
	t.Cleanup(func() { _ = s.Close() })
	ns := s.Namespace("api")

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 2_000
	deadline := time.Now().Add(time.Second)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.Intn(keyspace))
				switch r.Intn(100) {
				case 0, 1, 2, 3, 4: // ~5% Delete
					s.Delete(k)
				case 5, 6, 7, 8, 9: // ~5% SetWithTTL
					s.SetWithTTL(k, "x", time.Duration(5+r.Intn(20))*time.Millisecond)
				case 10, 11, 12, 13, 14, 15, 16, 17, 18, 19: // ~10% Set
					s.Set(k, "x")
				case 20, 21:
					s.UpdateTTL(k, time.Duration(r.Intn(30))*time.Millisecond)
				case 22:
					ns.Set(k, "y")
				case 23:
					_ = ns.Stats()
				default: // Get
					s.Get(k)
				}
			}
		}(w)
	}
	wg.Wait()

	s.Flush()
	if n := s.Len(); n > 512 {
		t.Fatalf("store exceeded MaxSize: %d", n)
	}
}
