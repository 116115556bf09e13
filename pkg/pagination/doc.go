// Package pagination provides cursor-based forward/backward page
// navigation on top of the fetch coordinator.
//
// A Controller owns one page window per view session (e.g. one open
// "orders list"). Every page it has visited is retained as a
// (parameters, boundaries) record, so navigating back rebuilds the exact
// query key of the earlier page and the cache serves it without a refetch
// unless it was evicted.
//
// State machine:
//
//	Empty -> Loading -> Loaded <-> LoadingNext/LoadingPrevious -> Loaded
//	                       Error reachable from any Loading state
//
// Example usage:
//
//	ctrl, err := pagination.NewController(coord, ordersAdapter.FetchPage, pagination.Config{
//		Resource:   "orders",
//		PageSize:   20,
//		BaseParams: map[string]any{"status": "open"},
//	})
//	if err := ctrl.LoadFirstPage(ctx); err != nil { ... }
//	if ctrl.HasNextPage() {
//		if err := ctrl.GoToNextPage(ctx); err != nil { ... }
//	}
//
// Changing any base parameter via SetBaseParams discards the whole
// window: boundaries recorded under different filters are never reused.
// A source that reports no pageInfo is treated as having no further pages
// in either direction rather than as an error.
package pagination
