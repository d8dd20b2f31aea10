package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// CacheHits counts cache hits by category (geocode, route, eta)
	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_cache_hits_total", Help: "Cache hits by category."},
		[]string{"category"},
	)
	// CacheMisses counts cache misses (absent or expired) by category
	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_cache_misses_total", Help: "Cache misses by category."},
		[]string{"category"},
	)
	// CacheEvictions counts entries dropped by the route-category size bound
	CacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "route_cache_evictions_total", Help: "Entries evicted by the route cache size bound."},
	)
	// DedupCollapsed counts calls that joined an already in-flight fetch
	DedupCollapsed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "request_dedup_collapsed_total", Help: "Calls collapsed into an in-flight fetch."},
	)
	// ETARequests counts composed ETA reports by outcome (ok, default)
	ETARequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "eta_requests_total", Help: "Composed ETA reports by outcome."},
		[]string{"outcome"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(CacheHits)
		Registry.MustRegister(CacheMisses)
		Registry.MustRegister(CacheEvictions)
		Registry.MustRegister(DedupCollapsed)
		Registry.MustRegister(ETARequests)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
