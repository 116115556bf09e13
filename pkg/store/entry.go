package store

import (
	"time"

	"github.com/querykit/querycache/pkg/querykey"
)

// State is the lifecycle state of a cache entry.
type State string

const (
	// StateIdle means the entry was referenced but never fetched.
	StateIdle State = "idle"

	// StateFetching means a fetch for the entry is in flight.
	StateFetching State = "fetching"

	// StateFresh means the entry holds a value younger than the TTL.
	StateFresh State = "fresh"

	// StateStale means the entry holds a value older than the TTL or one
	// that was explicitly invalidated. The value is still readable.
	StateStale State = "stale"

	// StateError means the last fetch failed. A previous good value, if
	// any, is retained for stale-while-revalidate reads.
	StateError State = "error"
)

// Entry is a read-only snapshot of a cache entry at the time of a Get.
// The Value is owned by the store; consumers must not mutate it.
type Entry struct {
	Key       querykey.Key
	State     State
	Value     any
	HasValue  bool
	Err       error
	Version   int64
	UpdatedAt time.Time
}

// entry is the store's internal mutable record.
type entry struct {
	key        querykey.Key
	state      State
	value      any
	hasValue   bool
	err        error
	version    int64
	updatedAt  time.Time
	staleSince time.Time
	refs       int
	subs       map[int64]func(Entry)
	nextSubID  int64
}

func (e *entry) snapshot() Entry {
	return Entry{
		Key:       e.key,
		State:     e.state,
		Value:     e.value,
		HasValue:  e.hasValue,
		Err:       e.err,
		Version:   e.version,
		UpdatedAt: e.updatedAt,
	}
}
