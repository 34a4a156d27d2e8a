// Package metrics registers the Prometheus metrics used by the gateway.
// Import this package (via blank import) from the server entry point to
// register all metrics before the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request-level counters and histograms.
var (
	// RequestsTotal counts completed gateway operations labelled by operation
	// ("speech", "text", "voice_clone") and outcome ("success", "error",
	// "rejected").
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_requests_total",
			Help: "Total number of operations processed by the gateway.",
		},
		[]string{"operation", "status"},
	)

	// RequestDuration observes end-to-end operation latency in seconds.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shield_request_duration_seconds",
			Help:    "End-to-end operation duration in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	// CacheHits counts cache hits per operation.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_cache_hits_total",
			Help: "Total cache hits, by operation.",
		},
		[]string{"operation"},
	)

	// CacheMisses counts cache misses per operation.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_cache_misses_total",
			Help: "Total cache misses, by operation.",
		},
		[]string{"operation"},
	)

	// CacheEntries tracks the current number of live cache entries.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shield_cache_entries",
			Help: "Current number of live cache entries.",
		},
	)

	// CacheEvictions counts entries removed by LRU eviction or expiry sweep,
	// labelled by reason ("lru", "expired").
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_cache_evictions_total",
			Help: "Total cache entries evicted, by reason.",
		},
		[]string{"reason"},
	)

	// RateLimitRejections counts requests denied by the admission layer,
	// labelled by limiter class ("global", "speech", "text", "voice_clone").
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_rate_limit_rejections_total",
			Help: "Total requests rejected by rate limiting.",
		},
		[]string{"class"},
	)

	// UpstreamErrors counts upstream call failures broken down by upstream
	// name and error type ("upstream_error", "circuit_open", "timeout").
	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_upstream_errors_total",
			Help: "Total upstream errors by type.",
		},
		[]string{"upstream", "error_type"},
	)
)
