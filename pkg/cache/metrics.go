package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (memory, store)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appliance_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks fetches started because no entry existed
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appliance_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CoalescedWaits tracks callers that joined an in-flight fetch
	CoalescedWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appliance_cache_coalesced_total",
			Help: "Total number of requests served by an already pending fetch",
		},
	)

	// CacheErases tracks explicit cache erases
	CacheErases = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appliance_cache_erases_total",
			Help: "Total number of cache erases",
		},
	)

	// CacheErrors tracks shared store operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appliance_cache_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"operation"}, // "get", "set", "flush"
	)
)
