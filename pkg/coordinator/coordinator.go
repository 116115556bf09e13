// Package coordinator deduplicates fetches over the cache store: at most
// one fetch is in flight per query key, and all concurrent callers for
// that key share the one result.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/querykit/querycache/pkg/querykey"
	"github.com/querykit/querycache/pkg/store"
)

// FetchFunc performs the actual I/O for one query key. The context is
// owned by the coordinator and is cancelled when every waiter for the key
// has given up.
type FetchFunc func(ctx context.Context) (any, error)

// Coordinator routes loads through the store and collapses concurrent
// fetches for the same key into one. Safe for concurrent use.
type Coordinator struct {
	store  *store.Store
	logger zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*inflight
}

// inflight tracks one running fetch and the callers awaiting it.
type inflight struct {
	key       querykey.Key
	version   int64
	cancel    context.CancelFunc
	done      chan struct{}
	value     any
	err       error
	waiters   int
	abandoned bool
	completed bool
}

// New creates a coordinator over the given store.
func New(s *store.Store, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:    s,
		logger:   logger,
		inflight: make(map[string]*inflight),
	}
}

// Store returns the underlying cache store, for subscriptions and
// invalidation by consumers.
func (c *Coordinator) Store() *store.Store {
	return c.store
}

// Load returns the value for key, fetching it with fetchFn if the cache
// has no fresh entry. A Fresh entry is returned immediately with no I/O.
// If a fetch for key is already in flight the caller joins its waiter set
// instead of starting a second fetch. Cancelling ctx removes only this
// caller; the fetch itself is aborted when no waiters remain.
func (c *Coordinator) Load(ctx context.Context, key querykey.Key, fetchFn FetchFunc) (any, error) {
	if entry, ok := c.store.Get(key); ok && entry.State == store.StateFresh {
		return entry.Value, nil
	}
	fl := c.join(key, fetchFn)
	return c.wait(ctx, fl)
}

// EnsureQueryData is the route-loader surface: it blocks until the data
// for key is cached, exactly like Load.
func (c *Coordinator) EnsureQueryData(ctx context.Context, key querykey.Key, fetchFn FetchFunc) (any, error) {
	return c.Load(ctx, key, fetchFn)
}

// LoadStale returns a cached value immediately when one exists, even if
// stale, and revalidates stale entries in the background. With no cached
// value it behaves like Load.
func (c *Coordinator) LoadStale(ctx context.Context, key querykey.Key, fetchFn FetchFunc) (any, error) {
	entry, ok := c.store.Get(key)
	if ok && entry.State == store.StateFresh {
		return entry.Value, nil
	}
	if ok && entry.HasValue {
		staleServes.Inc()
		if entry.State != store.StateFetching {
			fl := c.join(key, fetchFn)
			go func() {
				// Background revalidation holds its own waiter so the
				// fetch is never abandoned; its error lands in the store.
				_, err := c.wait(context.Background(), fl)
				if err != nil {
					c.logger.Debug().
						Err(err).
						Str("key", key.Canonical()).
						Msg("Background revalidation failed")
				}
			}()
		}
		return entry.Value, nil
	}
	return c.Load(ctx, key, fetchFn)
}

// Revalidate starts a fetch for key unless one is already in flight,
// without waiting for the result.
func (c *Coordinator) Revalidate(key querykey.Key, fetchFn FetchFunc) {
	fl := c.join(key, fetchFn)
	go func() {
		if _, err := c.wait(context.Background(), fl); err != nil {
			c.logger.Debug().
				Err(err).
				Str("key", key.Canonical()).
				Msg("Revalidation failed")
		}
	}()
}

// join attaches the caller to the in-flight fetch for key, starting one
// if none exists. The caller must follow up with wait.
func (c *Coordinator) join(key querykey.Key, fetchFn FetchFunc) *inflight {
	canonical := key.Canonical()

	c.mu.Lock()
	if fl, ok := c.inflight[canonical]; ok {
		fl.waiters++
		c.mu.Unlock()
		dedupJoins.Inc()
		c.logger.Debug().
			Str("key", canonical).
			Msg("Joined in-flight fetch")
		return fl
	}

	fctx, cancel := context.WithCancel(context.Background())
	fl := &inflight{
		key:     key,
		cancel:  cancel,
		done:    make(chan struct{}),
		waiters: 1,
	}
	fl.version = c.store.MarkFetching(key)
	c.inflight[canonical] = fl
	c.mu.Unlock()

	fetchesStarted.Inc()
	go c.run(fctx, fl, fetchFn)
	return fl
}

// run executes the fetch and publishes its outcome to the store and to
// every waiter still attached.
func (c *Coordinator) run(ctx context.Context, fl *inflight, fetchFn FetchFunc) {
	start := time.Now()
	value, err := fetchFn(ctx)
	fetchDuration.Observe(time.Since(start).Seconds())

	canonical := fl.key.Canonical()

	c.mu.Lock()
	fl.completed = true
	abandoned := fl.abandoned
	if !abandoned {
		delete(c.inflight, canonical)
	}
	c.mu.Unlock()

	switch {
	case abandoned:
		// Every waiter gave up; the result, whatever it was, is discarded
		// and the entry rolls back to its pre-fetch state.
		fetchesAbandoned.Inc()
		c.store.AbortFetch(fl.key, fl.version)
		fl.err = &FetchError{Kind: KindCancelled, Message: "all waiters cancelled"}
		c.logger.Debug().
			Str("key", canonical).
			Msg("Abandoned fetch completed, result discarded")
	case err != nil:
		fetchErr := classify(err)
		fetchFailures.WithLabelValues(string(fetchErr.Kind)).Inc()
		c.store.PutError(fl.key, fetchErr, fl.version)
		fl.err = fetchErr
		c.logger.Warn().
			Err(err).
			Str("key", canonical).
			Str("kind", string(fetchErr.Kind)).
			Msg("Fetch failed")
	default:
		c.store.Put(fl.key, value, fl.version)
		fl.value = value
		c.logger.Debug().
			Str("key", canonical).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete")
	}

	fl.cancel()
	close(fl.done)
}

// wait blocks until the fetch completes or ctx is cancelled. Cancellation
// detaches only this waiter; the last detaching waiter aborts the fetch.
func (c *Coordinator) wait(ctx context.Context, fl *inflight) (any, error) {
	select {
	case <-fl.done:
		return fl.value, fl.err
	case <-ctx.Done():
		c.detach(fl)
		return nil, &FetchError{Kind: KindCancelled, Message: "caller cancelled wait", Err: ctx.Err()}
	}
}

// detach removes one waiter from fl. When the waiter set empties before
// completion the underlying fetch is cancelled and unregistered so a later
// Load can start over; the version guard discards the abandoned result.
func (c *Coordinator) detach(fl *inflight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fl.waiters--
	if fl.waiters > 0 || fl.completed || fl.abandoned {
		return
	}
	fl.abandoned = true
	fl.cancel()
	delete(c.inflight, fl.key.Canonical())
	c.logger.Debug().
		Str("key", fl.key.Canonical()).
		Msg("Last waiter cancelled, aborting fetch")
}
