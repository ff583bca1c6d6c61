package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks lookups answered from the cache
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replay_proxy_cache_hits_total",
			Help: "Total number of replayed cache hits",
		},
	)

	// CacheMisses tracks lookups with no live entry
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replay_proxy_cache_misses_total",
			Help: "Total number of cache misses, including expired matches",
		},
	)

	// CacheEntries tracks the number of indexed entries
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "replay_proxy_cache_entries",
			Help: "Number of cache entries currently indexed",
		},
	)

	// CacheErrors tracks cache file I/O errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replay_proxy_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "load", "write", "reset", "compact"
	)

	// CacheFilesRemoved tracks files deleted from the cache directory
	CacheFilesRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replay_proxy_cache_files_removed_total",
			Help: "Total number of cache files deleted",
		},
		[]string{"reason"}, // "reset", "expired"
	)
)
