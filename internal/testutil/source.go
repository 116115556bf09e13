// Package testutil provides test doubles for the query cache.
package testutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/querykit/querycache/pkg/pagination"
)

// Node is the element type served by the scripted source.
type Node struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Source is a configurable in-memory cursor-paginated data source. It
// serves a fixed ordered node set through the Connection contract and
// tracks every call, so tests can assert on dedup and refetch behavior.
type Source struct {
	mu           sync.Mutex
	nodes        []Node
	calls        int
	lastParams   map[string]any
	nextErr      error
	delay        time.Duration
	omitPageInfo bool
}

// NewSource creates a source holding total nodes named node-0..node-N.
func NewSource(total int) *Source {
	nodes := make([]Node, total)
	for i := range nodes {
		nodes[i] = Node{ID: i, Name: fmt.Sprintf("node-%d", i)}
	}
	return &Source{nodes: nodes}
}

// FetchPage serves one page. Cursors are "cursor-<index>" over the node
// list; "after" pages forward from a cursor, "before" pages backward.
func (s *Source) FetchPage(ctx context.Context, params map[string]any) (pagination.Connection[Node], error) {
	s.mu.Lock()
	s.calls++
	s.lastParams = params
	err := s.nextErr
	s.nextErr = nil
	delay := s.delay
	omit := s.omitPageInfo
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return pagination.Connection[Node]{}, ctx.Err()
		}
	}
	if err != nil {
		return pagination.Connection[Node]{}, err
	}

	first := pageSize(params)
	start := 0
	if after, ok := params["after"].(string); ok {
		idx, err := cursorIndex(after)
		if err != nil {
			return pagination.Connection[Node]{}, err
		}
		start = idx + 1
	} else if before, ok := params["before"].(string); ok {
		idx, err := cursorIndex(before)
		if err != nil {
			return pagination.Connection[Node]{}, err
		}
		start = idx - first
		if start < 0 {
			start = 0
		}
	}

	end := start + first
	if end > len(s.nodes) {
		end = len(s.nodes)
	}
	if start > len(s.nodes) {
		start = len(s.nodes)
	}

	conn := pagination.Connection[Node]{Nodes: append([]Node(nil), s.nodes[start:end]...)}
	if !omit && end > start {
		conn.PageInfo = pagination.PageInfo{
			HasNextPage:     end < len(s.nodes),
			HasPreviousPage: start > 0,
			StartCursor:     cursor(start),
			EndCursor:       cursor(end - 1),
		}
	}
	return conn, nil
}

// Calls returns how many times FetchPage ran.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastParams returns the parameters of the most recent call.
func (s *Source) LastParams() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastParams
}

// FailNextWith makes the next FetchPage call return err.
func (s *Source) FailNextWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextErr = err
}

// SetDelay makes every FetchPage call block for d, honoring the context.
func (s *Source) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// OmitPageInfo makes the source stop reporting pagination metadata,
// simulating a backend without cursor support.
func (s *Source) OmitPageInfo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitPageInfo = true
}

func cursor(index int) string {
	return fmt.Sprintf("cursor-%d", index)
}

func cursorIndex(c string) (int, error) {
	raw, ok := strings.CutPrefix(c, "cursor-")
	if !ok {
		return 0, fmt.Errorf("malformed cursor %q", c)
	}
	return strconv.Atoi(raw)
}

func pageSize(params map[string]any) int {
	switch v := params["first"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 10
	}
}
