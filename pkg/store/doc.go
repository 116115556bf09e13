// Package store provides the per-session, in-memory cache behind the fetch
// coordinator: a mapping from canonical query keys to entries with an
// explicit lifecycle.
//
// Entry lifecycle:
//
//	Idle -> Fetching -> Fresh -> Stale -> Fetching -> ...
//	                 \-> Error (previous good value retained)
//
// An entry is created Idle on first reference, becomes Fetching when a
// fetch starts, Fresh on success, and Stale once its age exceeds the
// configured TTL or an invalidation targets it. A failed fetch moves it to
// Error while keeping the last good value readable, which is what lets the
// UI show last-known data next to an error indicator
// (stale-while-revalidate).
//
// # Version guard
//
// Every successful write carries a version token handed out by
// MarkFetching. Writes with a version lower than the entry's current one
// are dropped, so a superseded fetch that is cancelled but still resolving
// can never overwrite a newer result:
//
//	version := s.MarkFetching(key)
//	value, err := fetchFn(ctx)
//	if err != nil {
//		s.PutError(key, err, version)
//	} else {
//		s.Put(key, value, version)
//	}
//
// # Basic usage
//
//	s := store.New(store.Config{
//		TTL:           30 * time.Second,
//		EvictionGrace: 5 * time.Minute,
//	})
//
//	if entry, ok := s.Get(key); ok && entry.State == store.StateFresh {
//		// zero-latency hit
//	}
//
// # Subscriptions
//
// UI hooks subscribe to an entry to re-render on state transitions:
//
//	unsubscribe := s.Subscribe(key, func(e store.Entry) {
//		// entry transitioned; re-render
//	})
//	defer unsubscribe()
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - querycache_store_hits_total{state} - lookups that found an entry
//   - querycache_store_misses_total - lookups that found nothing
//   - querycache_store_invalidations_total - entries forced to stale
//   - querycache_store_evictions_total - entries removed
//   - querycache_store_dropped_writes_total - writes dropped by the version guard
package store
