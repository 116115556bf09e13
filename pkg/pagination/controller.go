package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/querykit/querycache/pkg/coordinator"
	"github.com/querykit/querycache/pkg/querykey"
)

// State is the controller's position in its page-loading state machine.
type State string

const (
	StateEmpty           State = "empty"
	StateLoading         State = "loading"
	StateLoaded          State = "loaded"
	StateLoadingNext     State = "loading_next"
	StateLoadingPrevious State = "loading_previous"
	StateError           State = "error"
)

// Sentinel errors returned by navigation operations.
var (
	// ErrNoNextPage means there is no next page to navigate to, or a
	// navigation is already in flight. Check HasNextPage first.
	ErrNoNextPage = errors.New("no next page")

	// ErrNoPreviousPage is the backward counterpart of ErrNoNextPage.
	ErrNoPreviousPage = errors.New("no previous page")

	// ErrInvalidPageSize means the configured page size is not a
	// positive integer.
	ErrInvalidPageSize = errors.New("page size must be a positive integer")

	// ErrReservedParam means a base parameter collides with the cursor
	// parameters the controller owns.
	ErrReservedParam = errors.New("base params must not set first, after, or before")
)

// FetchFunc fetches one page of T for the given request parameters.
// Implemented by resource adapters against the remote data source.
type FetchFunc[T any] func(ctx context.Context, params map[string]any) (Connection[T], error)

// Config configures a Controller.
type Config struct {
	// Resource names the paginated collection; it becomes the query key
	// resource for every page.
	Resource string

	// PageSize is the number of nodes requested per page. Must be positive.
	PageSize int

	// BaseParams are the non-cursor request parameters (filters, sort).
	// Changing them later resets the whole page window.
	BaseParams map[string]any

	// Logger is an optional component logger.
	Logger zerolog.Logger
}

// pageBounds is the retained record of one visited page: the parameters it
// was fetched with (so back-navigation rebuilds the identical query key)
// and its boundary metadata.
type pageBounds struct {
	params map[string]any
	info   PageInfo
}

// Controller drives cursor-based forward/backward pagination for one view
// session over the fetch coordinator. Each controller owns one page window;
// the window is discarded when the base parameters change.
type Controller[T any] struct {
	coord     *coordinator.Coordinator
	fetch     FetchFunc[T]
	resource  string
	pageSize  int
	sessionID string
	logger    zerolog.Logger

	mu         sync.Mutex
	baseParams map[string]any
	state      State
	window     []pageBounds
	index      int
	current    Connection[T]
	lastErr    error
	generation uint64
}

// NewController creates a pagination controller for one view session.
func NewController[T any](coord *coordinator.Coordinator, fetch FetchFunc[T], cfg Config) (*Controller[T], error) {
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPageSize, cfg.PageSize)
	}
	if err := checkReserved(cfg.BaseParams); err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	return &Controller[T]{
		coord:      coord,
		fetch:      fetch,
		resource:   cfg.Resource,
		pageSize:   cfg.PageSize,
		sessionID:  sessionID,
		logger:     cfg.Logger.With().Str("session_id", sessionID).Str("resource", cfg.Resource).Logger(),
		baseParams: copyParams(cfg.BaseParams),
		state:      StateEmpty,
	}, nil
}

// State returns the controller's current state.
func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the currently displayed page.
func (c *Controller[T]) Current() Connection[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Err returns the error that moved the controller to StateError, if any.
func (c *Controller[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// HasNextPage reports whether forward navigation is possible.
func (c *Controller[T]) HasNextPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateLoaded && c.window[c.index].info.HasNextPage
}

// HasPreviousPage reports whether backward navigation is possible, either
// into a retained earlier page or past the window's first page.
func (c *Controller[T]) HasPreviousPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLoaded {
		return false
	}
	return c.index > 0 || c.window[c.index].info.HasPreviousPage
}

// LoadFirstPage fetches the first page (no cursor) and initializes the
// page window.
func (c *Controller[T]) LoadFirstPage(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateLoading || c.state == StateLoadingNext || c.state == StateLoadingPrevious {
		c.mu.Unlock()
		return fmt.Errorf("load already in flight (state %s)", c.state)
	}
	c.window = nil
	c.index = 0
	c.current = Connection[T]{}
	c.state = StateLoading
	params := c.cursorParams("", "")
	gen := c.generation
	c.mu.Unlock()

	conn, err := c.fetchPage(ctx, params)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		// Base params changed while loading; the result belongs to a
		// discarded window.
		return nil
	}
	if err != nil {
		c.state = StateError
		c.lastErr = err
		return err
	}

	c.window = []pageBounds{{params: params, info: conn.PageInfo}}
	c.index = 0
	c.current = conn
	c.state = StateLoaded
	c.lastErr = nil
	c.logger.Debug().
		Int("nodes", len(conn.Nodes)).
		Bool("has_next", conn.PageInfo.HasNextPage).
		Msg("First page loaded")
	return nil
}

// GoToNextPage advances to the page after the current one, fetching with
// after = endCursor of the current page. Fails with ErrNoNextPage when
// there is no next page or a navigation is already in flight; no fetch is
// issued in that case.
func (c *Controller[T]) GoToNextPage(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateLoaded || !c.window[c.index].info.HasNextPage {
		c.mu.Unlock()
		return ErrNoNextPage
	}

	var params map[string]any
	revisit := c.index+1 < len(c.window)
	if revisit {
		// Forward into a page already visited: reuse its exact
		// parameters so the cache serves it without a refetch.
		params = c.window[c.index+1].params
	} else {
		params = c.cursorParams("after", c.window[c.index].info.EndCursor)
	}
	c.state = StateLoadingNext
	gen := c.generation
	c.mu.Unlock()

	conn, err := c.fetchPage(ctx, params)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return nil
	}
	if err != nil {
		c.state = StateError
		c.lastErr = err
		return err
	}

	if revisit {
		c.window[c.index+1].info = conn.PageInfo
	} else {
		c.window = append(c.window, pageBounds{params: params, info: conn.PageInfo})
	}
	c.index++
	c.current = conn
	c.state = StateLoaded
	c.lastErr = nil
	c.logger.Debug().
		Int("page_index", c.index).
		Bool("has_next", conn.PageInfo.HasNextPage).
		Msg("Advanced to next page")
	return nil
}

// GoToPreviousPage moves back one page. A page retained in the window is
// re-requested under its original parameters, which is a cache hit unless
// it was evicted; before the window's first page it falls back to a fetch
// with before = startCursor of the current page.
func (c *Controller[T]) GoToPreviousPage(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateLoaded {
		c.mu.Unlock()
		return ErrNoPreviousPage
	}

	var params map[string]any
	prepend := false
	switch {
	case c.index > 0:
		params = c.window[c.index-1].params
	case c.window[c.index].info.HasPreviousPage:
		params = c.cursorParams("before", c.window[c.index].info.StartCursor)
		prepend = true
	default:
		c.mu.Unlock()
		return ErrNoPreviousPage
	}
	c.state = StateLoadingPrevious
	gen := c.generation
	c.mu.Unlock()

	conn, err := c.fetchPage(ctx, params)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return nil
	}
	if err != nil {
		c.state = StateError
		c.lastErr = err
		return err
	}

	if prepend {
		c.window = append([]pageBounds{{params: params, info: conn.PageInfo}}, c.window...)
	} else {
		c.index--
		c.window[c.index].info = conn.PageInfo
	}
	c.current = conn
	c.state = StateLoaded
	c.lastErr = nil
	c.logger.Debug().
		Int("page_index", c.index).
		Msg("Moved to previous page")
	return nil
}

// SetBaseParams replaces the non-cursor parameters and resets the page
// window: retained boundaries under the old filters are never reused.
func (c *Controller[T]) SetBaseParams(params map[string]any) error {
	if err := checkReserved(params); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseParams = copyParams(params)
	c.window = nil
	c.index = 0
	c.current = Connection[T]{}
	c.state = StateEmpty
	c.lastErr = nil
	c.generation++
	c.logger.Debug().Msg("Base params changed, page window reset")
	return nil
}

// fetchPage loads one page through the coordinator so concurrent sessions
// over the same key share a single fetch.
func (c *Controller[T]) fetchPage(ctx context.Context, params map[string]any) (Connection[T], error) {
	key, err := querykey.Build(c.resource, params)
	if err != nil {
		return Connection[T]{}, err
	}

	value, err := c.coord.Load(ctx, key, func(fctx context.Context) (any, error) {
		conn, err := c.fetch(fctx, params)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
	if err != nil {
		return Connection[T]{}, err
	}

	conn, ok := value.(Connection[T])
	if !ok {
		return Connection[T]{}, fmt.Errorf("cache entry for %s holds %T, not a page", key, value)
	}
	return conn, nil
}

// cursorParams assembles the full request parameters for one page:
// base params, page size, and the optional cursor.
func (c *Controller[T]) cursorParams(cursorParam, cursor string) map[string]any {
	params := copyParams(c.baseParams)
	params["first"] = c.pageSize
	if cursorParam != "" {
		params[cursorParam] = cursor
	}
	return params
}

func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for name, value := range params {
		out[name] = value
	}
	return out
}

func checkReserved(params map[string]any) error {
	for _, reserved := range []string{"first", "after", "before"} {
		if _, ok := params[reserved]; ok {
			return fmt.Errorf("%w: %q supplied", ErrReservedParam, reserved)
		}
	}
	return nil
}
