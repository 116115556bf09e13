package prefetch_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querykit/querycache/pkg/coordinator"
	"github.com/querykit/querycache/pkg/prefetch"
	"github.com/querykit/querycache/pkg/querykey"
	"github.com/querykit/querycache/pkg/store"
)

func newGateway(t *testing.T) (*prefetch.Gateway, *coordinator.Coordinator, *store.Store) {
	t.Helper()
	s := store.New(store.Config{TTL: time.Minute})
	coord := coordinator.New(s, zerolog.Nop())
	return prefetch.New(coord, zerolog.Nop()), coord, s
}

func TestPrefetch_PopulatesCache(t *testing.T) {
	g, coord, s := newGateway(t)
	key := querykey.MustBuild("orders", map[string]any{"first": 20})

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "page", nil
	}

	g.Prefetch(key, fetch)
	g.Wait()

	entry, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, store.StateFresh, entry.State)
	assert.Equal(t, "page", entry.Value)

	// The later real request is a zero-I/O hit
	value, err := coord.Load(context.Background(), key, fetch)
	require.NoError(t, err)
	assert.Equal(t, "page", value)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPrefetch_SharesInFlightFetchWithLoad(t *testing.T) {
	g, coord, _ := newGateway(t)
	key := querykey.MustBuild("orders", nil)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	g.Prefetch(key, fetch)
	time.Sleep(20 * time.Millisecond)

	// A real load arriving while the prefetch is in flight joins it.
	valueCh := make(chan any, 1)
	go func() {
		value, _ := coord.Load(context.Background(), key, fetch)
		valueCh <- value
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	assert.Equal(t, "shared", <-valueCh)
	g.Wait()
	assert.Equal(t, int32(1), calls.Load(), "prefetch and load share one fetch")
}

func TestPrefetch_ErrorsAreSwallowed(t *testing.T) {
	g, _, s := newGateway(t)
	key := querykey.MustBuild("orders", nil)

	fetch := func(ctx context.Context) (any, error) {
		return nil, errors.New("upstream down")
	}

	// Must not panic or surface anywhere; the entry records the error.
	g.Prefetch(key, fetch)
	g.Wait()

	entry, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, store.StateError, entry.State)
}

func TestPrefetchBatch_WarmsAllKeys(t *testing.T) {
	g, _, s := newGateway(t)

	keys := make([]querykey.Key, 6)
	for i := range keys {
		keys[i] = querykey.MustBuild("orders", map[string]any{"page": i})
	}

	var calls atomic.Int32
	fetchFor := func(key querykey.Key) coordinator.FetchFunc {
		return func(ctx context.Context) (any, error) {
			calls.Add(1)
			return fmt.Sprintf("data-%s", key.Canonical()), nil
		}
	}

	g.PrefetchBatch(context.Background(), keys, fetchFor, 2)

	assert.Equal(t, int32(len(keys)), calls.Load())
	for _, key := range keys {
		entry, ok := s.Get(key)
		require.True(t, ok, "key %s not cached", key)
		assert.Equal(t, store.StateFresh, entry.State)
	}
}

func TestPrefetchBatch_FailuresDoNotAbortBatch(t *testing.T) {
	g, _, s := newGateway(t)

	good := querykey.MustBuild("orders", map[string]any{"page": 1})
	bad := querykey.MustBuild("orders", map[string]any{"page": 2})

	fetchFor := func(key querykey.Key) coordinator.FetchFunc {
		return func(ctx context.Context) (any, error) {
			if key == bad {
				return nil, errors.New("boom")
			}
			return "ok", nil
		}
	}

	g.PrefetchBatch(context.Background(), []querykey.Key{bad, good}, fetchFor, 1)

	entry, ok := s.Get(good)
	require.True(t, ok)
	assert.Equal(t, store.StateFresh, entry.State)

	entry, ok = s.Get(bad)
	require.True(t, ok)
	assert.Equal(t, store.StateError, entry.State)
}
