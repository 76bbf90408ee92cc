package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by resource
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_cache_hits_total",
			Help: "Total number of entity cache hits",
		},
		[]string{"resource"},
	)

	// CacheMisses tracks cache misses by resource
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_cache_misses_total",
			Help: "Total number of entity cache misses",
		},
		[]string{"resource"},
	)

	// CacheWrittenBytes tracks bytes written to Redis by resource
	CacheWrittenBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_cache_written_bytes_total",
			Help: "Total bytes of entity data written to the cache",
		},
		[]string{"resource"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "mget", "set", "delete"
	)
)
