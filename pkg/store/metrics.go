package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storeHits tracks lookups that found an entry, by observed state
	storeHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querycache_store_hits_total",
			Help: "Total number of cache lookups that found an entry",
		},
		[]string{"state"}, // "fresh", "stale", "fetching", "error", "idle"
	)

	// storeMisses tracks lookups for keys with no entry
	storeMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_store_misses_total",
			Help: "Total number of cache lookups that found no entry",
		},
	)

	// storeInvalidations tracks entries forced to stale
	storeInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_store_invalidations_total",
			Help: "Total number of cache entries forced to stale",
		},
	)

	// storeEvictions tracks entries removed by Evict or Sweep
	storeEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_store_evictions_total",
			Help: "Total number of cache entries removed",
		},
	)

	// storeDroppedWrites tracks writes rejected by the version guard
	storeDroppedWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_store_dropped_writes_total",
			Help: "Total number of fetch results dropped by the monotonic version guard",
		},
	)
)
