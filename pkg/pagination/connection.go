package pagination

// PageInfo carries the cursor boundary metadata of one fetched page.
// A source that omits pagination metadata yields the zero value, which
// reads as "no further pages in either direction".
type PageInfo struct {
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
	StartCursor     string `json:"startCursor"`
	EndCursor       string `json:"endCursor"`
}

// Connection is the page shape every resource adapter (orders, products,
// categories) must satisfy: the nodes of one page plus its boundaries.
type Connection[T any] struct {
	Nodes    []T      `json:"nodes"`
	PageInfo PageInfo `json:"pageInfo"`
}
