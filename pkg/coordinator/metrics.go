package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fetchesStarted tracks fetches actually issued (after dedup)
	fetchesStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_fetches_total",
			Help: "Total number of fetches issued by the coordinator",
		},
	)

	// dedupJoins tracks callers that joined an existing in-flight fetch
	dedupJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_fetch_joins_total",
			Help: "Total number of callers that joined an in-flight fetch instead of starting one",
		},
	)

	// fetchFailures tracks failed fetches by error kind
	fetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querycache_fetch_failures_total",
			Help: "Total number of failed fetches by error kind",
		},
		[]string{"kind"}, // "network", "server_rejected", "cancelled"
	)

	// fetchesAbandoned tracks fetches whose waiter set emptied before completion
	fetchesAbandoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_fetches_abandoned_total",
			Help: "Total number of fetches abandoned because every waiter cancelled",
		},
	)

	// staleServes tracks stale values served while revalidating
	staleServes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_stale_serves_total",
			Help: "Total number of stale values served under stale-while-revalidate",
		},
	)

	// fetchDuration tracks fetch latency
	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querycache_fetch_duration_seconds",
			Help:    "Fetch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)
)
