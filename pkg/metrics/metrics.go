// Package metrics documents the Prometheus metrics exported by the query
// cache. The series themselves are defined in their owning packages
// (store, coordinator, prefetch) to keep registration next to the code
// that drives them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the query cache.
// All series are registered via promauto in their owning packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Store Metrics (pkg/store):
//   - querycache_store_hits_total{state} (Counter): lookups that found an entry, by observed state
//   - querycache_store_misses_total (Counter): lookups that found no entry
//   - querycache_store_invalidations_total (Counter): entries forced to stale
//   - querycache_store_evictions_total (Counter): entries removed by Evict or Sweep
//   - querycache_store_dropped_writes_total (Counter): writes dropped by the version guard
//
// Coordinator Metrics (pkg/coordinator):
//   - querycache_fetches_total (Counter): fetches issued after dedup
//   - querycache_fetch_joins_total (Counter): callers that joined an in-flight fetch
//   - querycache_fetch_failures_total{kind} (Counter): failures by kind (network, server_rejected, cancelled)
//   - querycache_fetches_abandoned_total (Counter): fetches abandoned by all waiters cancelling
//   - querycache_stale_serves_total (Counter): stale values served under stale-while-revalidate
//   - querycache_fetch_duration_seconds (Histogram): fetch latency
//
// Prefetch Metrics (pkg/prefetch):
//   - querycache_prefetches_total (Counter): speculative fetches requested
//   - querycache_prefetch_errors_total (Counter): prefetch failures, swallowed
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(querycache_store_hits_total{state="fresh"}[5m])) /
//   (sum(rate(querycache_store_hits_total[5m])) + sum(rate(querycache_store_misses_total[5m])))
//
//   # Dedup Effectiveness (joins per issued fetch)
//   rate(querycache_fetch_joins_total[5m]) / rate(querycache_fetches_total[5m])
//
//   # Fetch Error Rate by Kind
//   rate(querycache_fetch_failures_total[5m])
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(querycache_fetch_duration_seconds_bucket[5m]))
