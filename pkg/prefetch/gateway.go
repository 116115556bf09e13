// Package prefetch exposes the fire-and-forget surface used by route
// loaders and hover-intent handlers to warm the cache before data is
// needed for rendering.
package prefetch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/querykit/querycache/pkg/coordinator"
	"github.com/querykit/querycache/pkg/querykey"
)

// DefaultConcurrency bounds parallel fetches in a prefetch batch.
const DefaultConcurrency = 4

// Gateway funnels speculative fetches into the coordinator. Prefetching
// shares the coordinator's deduplication, so a prefetch never duplicates
// work a real load already has in flight. Errors are logged and swallowed:
// a prefetch is an optimization, and the eventual real request will retry
// and surface errors normally.
type Gateway struct {
	coord  *coordinator.Coordinator
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// New creates a gateway over the given coordinator.
func New(coord *coordinator.Coordinator, logger zerolog.Logger) *Gateway {
	return &Gateway{
		coord:  coord,
		logger: logger,
	}
}

// Prefetch populates the cache for key without blocking the caller.
func (g *Gateway) Prefetch(key querykey.Key, fetchFn coordinator.FetchFunc) {
	prefetchesStarted.Inc()
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if _, err := g.coord.Load(context.Background(), key, fetchFn); err != nil {
			prefetchErrors.Inc()
			g.logger.Debug().
				Err(err).
				Str("key", key.Canonical()).
				Msg("Prefetch failed")
		}
	}()
}

// PrefetchBatch warms the cache for several keys with bounded parallelism,
// blocking until the batch settles. Route loaders use it to prime a page
// and its adjacent pages in one transition. Individual failures are
// swallowed like single prefetches; ctx cancellation stops the batch.
func (g *Gateway) PrefetchBatch(ctx context.Context, keys []querykey.Key, fetchFor func(querykey.Key) coordinator.FetchFunc, concurrency int) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for _, key := range keys {
		key := key
		prefetchesStarted.Inc()
		group.Go(func() error {
			if _, err := g.coord.Load(gctx, key, fetchFor(key)); err != nil {
				prefetchErrors.Inc()
				g.logger.Debug().
					Err(err).
					Str("key", key.Canonical()).
					Msg("Batch prefetch failed")
			}
			// Failures never abort the rest of the batch.
			return nil
		})
	}

	_ = group.Wait()
	g.logger.Debug().Int("keys", len(keys)).Msg("Prefetch batch settled")
}

// Wait blocks until every outstanding fire-and-forget prefetch has
// settled; used at session teardown.
func (g *Gateway) Wait() {
	g.wg.Wait()
}
