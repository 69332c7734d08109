// Command cachebench runs a synthetic content API workload against the cache
// and exposes optional pprof and Prometheus/debug endpoints.
//
// Storage and cache sizing come from the environment (CACHE_* variables);
// the workload shape comes from flags.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/contentcache/apicache"
	"github.com/IvanBrykalov/contentcache/internal/app"
	"github.com/IvanBrykalov/contentcache/internal/config"
	"github.com/IvanBrykalov/contentcache/internal/content"
)

// routes is the request mix. Routes with ids get a Zipf-distributed
// character id appended.
var routes = []struct {
	path string
	ids  bool
}{
	{"/characters", false},
	{"/characters/", true},
	{"/characters/categories", false},
	{"/content/search", false},
	{"/content/featured/", true},
	{"/stats/character/", true},
	{"/stats/overall", false},
	{"/recommendations/similar/", true},
}

func main() {
	// ---- Flags ----
	var (
		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		writePct = flag.Int("writes", 2, "percentage of requests that update a character [0..100]")
		latency  = flag.Duration("latency", 5*time.Millisecond, "simulated upstream latency per fetch")

		keys  = flag.Int("keys", 10_000, "character id space")
		zipfS = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed  = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := app.NewLogger(cfg, os.Stderr)

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			logger.Info("pprof: serving", "addr", *pprofAddr)
			logger.Error("pprof server stopped", "err", http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close", "err", err)
		}
	}()

	// ---- Prometheus metrics + cache stats ----
	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info("metrics: serving", "addr", cfg.MetricsAddr)
			logger.Error("metrics server stopped", "err", http.ListenAndServe(cfg.MetricsAddr, a.Handler()))
		}()
	}

	// ---- Snapshot flags for goroutines ----
	writePctVal := *writePct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal, zipfVVal := *zipfS, *zipfV
	latencyVal := *latency
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	var requests, fetches, invalidations, failures atomic.Uint64
	fetch := func(route string) func(context.Context) (json.RawMessage, error) {
		return func(ctx context.Context) (json.RawMessage, error) {
			fetches.Add(1)
			select {
			case <-time.After(latencyVal):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return json.Marshal(map[string]string{"route": route})
		}
	}

	// ---- Load generation ----
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var g errgroup.Group
	for w := 0; w < workersN; w++ {
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(seedBase + int64(w)*9973))
			zipf := rand.NewZipf(r, zipfSVal, zipfVVal, keysMax)

			for ctx.Err() == nil {
				id := strconv.FormatUint(zipf.Uint64(), 10)
				if int(r.Int31n(100)) < writePctVal {
					invalidations.Add(1)
					a.Invalidator.Character(id)
					continue
				}

				rt := routes[r.Intn(len(routes))]
				path, params := rt.path, apicache.Params("page", strconv.Itoa(1+r.Intn(3)))
				if rt.ids {
					path += id
					params = nil
				}
				requests.Add(1)
				if _, err := a.API.GetOrFetch(ctx, path, params, fetch(path)); err != nil && ctx.Err() == nil {
					failures.Add(1)
				}

				// Component cache: a memoized render of the character card.
				key := content.ResultKey("card", "render", []string{id}, nil)
				if _, err := a.Components.GetOrCompute(ctx, key, time.Minute, fetch(key)); err != nil && ctx.Err() == nil {
					failures.Add(1)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)
	a.Store.Flush()

	// ---- Report ----
	reqN := requests.Load()
	fetchN := fetches.Load()
	st := a.Store.Stats()

	fmt.Printf("backend=%s max=%d workers=%d keys=%d dur=%v seed=%d\n",
		cfg.Backend, cfg.MaxSize, workersN, *keys, elapsed, seedBase)
	fmt.Printf("requests=%d (%.0f req/s)  fetches=%d  invalidations=%d  failures=%d\n",
		reqN, float64(reqN)/elapsed.Seconds(), fetchN, invalidations.Load(), failures.Load())
	fmt.Printf("size=%d  totalHits=%d  avgHits=%.2f\n", st.Size, st.TotalHits, st.AverageHits)
}
