package prefetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// prefetchesStarted tracks speculative fetches requested
	prefetchesStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_prefetches_total",
			Help: "Total number of speculative fetches requested",
		},
	)

	// prefetchErrors tracks prefetches that failed (swallowed)
	prefetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_prefetch_errors_total",
			Help: "Total number of prefetch failures, logged and swallowed",
		},
	)
)
