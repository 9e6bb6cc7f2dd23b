package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by namespace
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsm_cache_hits_total",
			Help: "Total number of result cache hits",
		},
		[]string{"namespace"},
	)

	// CacheMisses tracks cache misses by namespace
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsm_cache_misses_total",
			Help: "Total number of result cache misses",
		},
		[]string{"namespace"},
	)

	// WrittenBytes tracks bytes written to the cache
	WrittenBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jsm_cache_written_bytes_total",
			Help: "Total bytes written to the result cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsm_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
