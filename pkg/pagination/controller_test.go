package pagination_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querykit/querycache/internal/testutil"
	"github.com/querykit/querycache/pkg/coordinator"
	"github.com/querykit/querycache/pkg/pagination"
	"github.com/querykit/querycache/pkg/querykey"
	"github.com/querykit/querycache/pkg/store"
)

func newSession(t *testing.T, totalNodes, pageSize int) (*pagination.Controller[testutil.Node], *testutil.Source, *store.Store) {
	t.Helper()
	source := testutil.NewSource(totalNodes)
	s := store.New(store.Config{TTL: time.Minute})
	coord := coordinator.New(s, zerolog.Nop())

	ctrl, err := pagination.NewController(coord, source.FetchPage, pagination.Config{
		Resource: "orders",
		PageSize: pageSize,
	})
	require.NoError(t, err)
	return ctrl, source, s
}

func TestNewController_Validation(t *testing.T) {
	s := store.New(store.Config{})
	coord := coordinator.New(s, zerolog.Nop())
	source := testutil.NewSource(10)

	t.Run("page size must be positive", func(t *testing.T) {
		_, err := pagination.NewController(coord, source.FetchPage, pagination.Config{
			Resource: "orders",
			PageSize: 0,
		})
		assert.ErrorIs(t, err, pagination.ErrInvalidPageSize)

		_, err = pagination.NewController(coord, source.FetchPage, pagination.Config{
			Resource: "orders",
			PageSize: -5,
		})
		assert.ErrorIs(t, err, pagination.ErrInvalidPageSize)
	})

	t.Run("cursor params are reserved", func(t *testing.T) {
		_, err := pagination.NewController(coord, source.FetchPage, pagination.Config{
			Resource:   "orders",
			PageSize:   20,
			BaseParams: map[string]any{"after": "X"},
		})
		assert.ErrorIs(t, err, pagination.ErrReservedParam)
	})
}

func TestController_LoadFirstPage(t *testing.T) {
	ctx := context.Background()
	ctrl, source, _ := newSession(t, 50, 20)

	assert.Equal(t, pagination.StateEmpty, ctrl.State())

	require.NoError(t, ctrl.LoadFirstPage(ctx))

	assert.Equal(t, pagination.StateLoaded, ctrl.State())
	assert.True(t, ctrl.HasNextPage())
	assert.False(t, ctrl.HasPreviousPage())

	page := ctrl.Current()
	require.Len(t, page.Nodes, 20)
	assert.Equal(t, 0, page.Nodes[0].ID)
	assert.Equal(t, 19, page.Nodes[19].ID)

	params := source.LastParams()
	assert.Equal(t, 20, params["first"])
	assert.NotContains(t, params, "after")
	assert.Equal(t, 1, source.Calls())
}

func TestController_GoToNextPage(t *testing.T) {
	ctx := context.Background()
	ctrl, source, _ := newSession(t, 50, 20)
	require.NoError(t, ctrl.LoadFirstPage(ctx))

	require.NoError(t, ctrl.GoToNextPage(ctx))

	assert.Equal(t, pagination.StateLoaded, ctrl.State())
	assert.Equal(t, "cursor-19", source.LastParams()["after"], "next page fetched with after = endCursor")
	page := ctrl.Current()
	require.Len(t, page.Nodes, 20)
	assert.Equal(t, 20, page.Nodes[0].ID)
	assert.True(t, ctrl.HasNextPage())
	assert.True(t, ctrl.HasPreviousPage())

	// Last (partial) page
	require.NoError(t, ctrl.GoToNextPage(ctx))
	page = ctrl.Current()
	require.Len(t, page.Nodes, 10)
	assert.Equal(t, 40, page.Nodes[0].ID)
	assert.False(t, ctrl.HasNextPage())
}

func TestController_GoToNextPage_NoNextPage(t *testing.T) {
	ctx := context.Background()
	ctrl, source, _ := newSession(t, 10, 20)
	require.NoError(t, ctrl.LoadFirstPage(ctx))
	require.False(t, ctrl.HasNextPage())

	callsBefore := source.Calls()
	err := ctrl.GoToNextPage(ctx)

	assert.ErrorIs(t, err, pagination.ErrNoNextPage)
	assert.Equal(t, callsBefore, source.Calls(), "boundary failure must not issue a fetch")
	assert.Equal(t, pagination.StateLoaded, ctrl.State())
}

func TestController_GoToPreviousPage_CacheHit(t *testing.T) {
	ctx := context.Background()
	ctrl, source, _ := newSession(t, 50, 20)
	require.NoError(t, ctrl.LoadFirstPage(ctx))
	require.NoError(t, ctrl.GoToNextPage(ctx))
	require.Equal(t, 2, source.Calls())

	// Back navigation reuses the retained boundary: the first page is
	// still cached, so no new fetch happens.
	require.NoError(t, ctrl.GoToPreviousPage(ctx))

	assert.Equal(t, 2, source.Calls(), "retained page served from cache")
	page := ctrl.Current()
	require.Len(t, page.Nodes, 20)
	assert.Equal(t, 0, page.Nodes[0].ID)
	assert.True(t, ctrl.HasNextPage())
	assert.False(t, ctrl.HasPreviousPage())

	// And forward again is also a cache hit
	require.NoError(t, ctrl.GoToNextPage(ctx))
	assert.Equal(t, 2, source.Calls())
	assert.Equal(t, 20, ctrl.Current().Nodes[0].ID)
}

func TestController_GoToPreviousPage_RefetchAfterEviction(t *testing.T) {
	ctx := context.Background()
	ctrl, source, s := newSession(t, 50, 20)
	require.NoError(t, ctrl.LoadFirstPage(ctx))
	require.NoError(t, ctrl.GoToNextPage(ctx))
	require.Equal(t, 2, source.Calls())

	// Evict the first page's entry; back navigation must fetch again.
	firstPageKey, err := querykey.Build("orders", map[string]any{"first": 20})
	require.NoError(t, err)
	s.Evict(firstPageKey)

	require.NoError(t, ctrl.GoToPreviousPage(ctx))
	assert.Equal(t, 3, source.Calls(), "evicted page is refetched")
	assert.Equal(t, 0, ctrl.Current().Nodes[0].ID)
}

func TestController_GoToPreviousPage_NoPreviousPage(t *testing.T) {
	ctx := context.Background()
	ctrl, source, _ := newSession(t, 50, 20)
	require.NoError(t, ctrl.LoadFirstPage(ctx))

	callsBefore := source.Calls()
	err := ctrl.GoToPreviousPage(ctx)

	assert.ErrorIs(t, err, pagination.ErrNoPreviousPage)
	assert.Equal(t, callsBefore, source.Calls())
}

func TestController_SetBaseParamsResetsWindow(t *testing.T) {
	ctx := context.Background()
	ctrl, _, _ := newSession(t, 50, 20)
	require.NoError(t, ctrl.LoadFirstPage(ctx))
	require.NoError(t, ctrl.GoToNextPage(ctx))
	require.True(t, ctrl.HasPreviousPage())

	require.NoError(t, ctrl.SetBaseParams(map[string]any{"status": "closed"}))

	assert.Equal(t, pagination.StateEmpty, ctrl.State())
	assert.Empty(t, ctrl.Current().Nodes)

	// Boundaries from the old filter set are gone: back navigation fails
	// instead of serving stale data.
	err := ctrl.GoToPreviousPage(ctx)
	assert.ErrorIs(t, err, pagination.ErrNoPreviousPage)
}

func TestController_MissingPageInfoMeansNoMorePages(t *testing.T) {
	ctx := context.Background()
	ctrl, source, _ := newSession(t, 50, 20)
	source.OmitPageInfo()

	require.NoError(t, ctrl.LoadFirstPage(ctx))

	assert.Equal(t, pagination.StateLoaded, ctrl.State())
	assert.False(t, ctrl.HasNextPage(), "unknown metadata reads as no more pages")
	assert.False(t, ctrl.HasPreviousPage())
	assert.ErrorIs(t, ctrl.GoToNextPage(ctx), pagination.ErrNoNextPage)
}

func TestController_FetchFailureMovesToError(t *testing.T) {
	ctx := context.Background()
	ctrl, source, _ := newSession(t, 50, 20)

	boom := errors.New("upstream down")
	source.FailNextWith(boom)

	err := ctrl.LoadFirstPage(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, pagination.StateError, ctrl.State())
	assert.ErrorIs(t, ctrl.Err(), boom)

	var fetchErr *coordinator.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, coordinator.KindNetwork, fetchErr.Kind)

	// Caller-initiated retry recovers
	require.NoError(t, ctrl.LoadFirstPage(ctx))
	assert.Equal(t, pagination.StateLoaded, ctrl.State())
	assert.NoError(t, ctrl.Err())
}
