package app

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/contentcache/cache"
)

// StatsSource is anything reporting cache statistics: a Store, a
// Namespace or an API cache.
type StatsSource interface {
	Stats() cache.Stats
}

// StatsHandler serves src.Stats() as JSON.
func StatsHandler(src StatsSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, src.Stats())
	})
}

// Handler exposes operational endpoints:
//
//	GET /metrics                  Prometheus metrics
//	GET /debug/cache              stats of the whole store
//	GET /debug/cache/{namespace}  stats of one namespace
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /debug/cache", StatsHandler(a.Store))
	mux.HandleFunc("GET /debug/cache/{namespace}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, a.Store.Namespace(r.PathValue("namespace")).Stats())
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
