package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/querykit/querycache/pkg/querykey"
)

// Config holds store configuration.
type Config struct {
	// TTL is how long a successful write stays Fresh. Zero means entries
	// are considered stale on every read after the first write, so every
	// load revalidates.
	TTL time.Duration

	// EvictionGrace is how long an unreferenced entry may stay Stale
	// before Sweep removes it. Zero means entries are kept indefinitely.
	EvictionGrace time.Duration

	// Logger is an optional component logger. Defaults to a disabled logger.
	Logger zerolog.Logger
}

// Store maps query keys to cache entries and owns their lifecycle.
//
// A Store is created per session and torn down with it; it is never a
// process-wide singleton. All mutation funnels through MarkFetching, Put,
// PutError, AbortFetch, Invalidate, and Evict, each an atomic step.
// Safe for concurrent use.
type Store struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty store with the given configuration.
func New(cfg Config) *Store {
	return &Store{
		cfg:     cfg,
		logger:  cfg.Logger,
		entries: make(map[string]*entry),
	}
}

// Get returns a snapshot of the entry for key. It is a pure lookup and
// never triggers a fetch. A Fresh entry whose age exceeds the TTL is
// demoted to Stale before the snapshot is taken.
func (s *Store) Get(key querykey.Key) (Entry, bool) {
	s.mu.Lock()
	ent, ok := s.entries[key.Canonical()]
	if !ok {
		s.mu.Unlock()
		storeMisses.Inc()
		return Entry{}, false
	}

	s.demoteIfExpired(ent)
	snap := ent.snapshot()
	s.mu.Unlock()

	storeHits.WithLabelValues(string(snap.State)).Inc()
	return snap, true
}

// MarkFetching transitions the entry for key to Fetching, creating it Idle
// first if it did not exist, and returns a new version token. The token
// must be presented to Put, PutError, or AbortFetch on completion.
func (s *Store) MarkFetching(key querykey.Key) int64 {
	s.mu.Lock()
	ent := s.getOrCreate(key)
	ent.state = StateFetching
	ent.version++
	version := ent.version
	notify := s.collectSubs(ent)
	s.mu.Unlock()

	s.logger.Debug().
		Str("key", key.Canonical()).
		Int64("version", version).
		Msg("Entry marked fetching")

	notify()
	return version
}

// Put stores a successfully fetched value. The write is accepted only if
// version is at least the entry's current version; a result from a
// superseded fetch arriving late is silently dropped.
func (s *Store) Put(key querykey.Key, value any, version int64) bool {
	s.mu.Lock()
	ent, ok := s.entries[key.Canonical()]
	if !ok || version < ent.version {
		s.mu.Unlock()
		storeDroppedWrites.Inc()
		s.logger.Debug().
			Str("key", key.Canonical()).
			Int64("version", version).
			Msg("Dropped stale write")
		return false
	}

	ent.state = StateFresh
	ent.value = value
	ent.hasValue = true
	ent.err = nil
	ent.version = version
	ent.updatedAt = time.Now()
	ent.staleSince = time.Time{}
	notify := s.collectSubs(ent)
	s.mu.Unlock()

	notify()
	return true
}

// PutError records a failed fetch. Subject to the same version guard as
// Put. A previous good value is retained so consumers can keep showing
// last-known data alongside the error.
func (s *Store) PutError(key querykey.Key, fetchErr error, version int64) bool {
	s.mu.Lock()
	ent, ok := s.entries[key.Canonical()]
	if !ok || version < ent.version {
		s.mu.Unlock()
		storeDroppedWrites.Inc()
		return false
	}

	ent.state = StateError
	ent.err = fetchErr
	ent.version = version
	if ent.hasValue {
		ent.staleSince = time.Now()
	}
	notify := s.collectSubs(ent)
	s.mu.Unlock()

	notify()
	return true
}

// AbortFetch rolls an abandoned fetch back. If the entry is still Fetching
// under the given version it reverts to Stale (value present) or Idle
// (no value); otherwise the call is a no-op, since a newer fetch owns the
// entry.
func (s *Store) AbortFetch(key querykey.Key, version int64) {
	s.mu.Lock()
	ent, ok := s.entries[key.Canonical()]
	if !ok || ent.version != version || ent.state != StateFetching {
		s.mu.Unlock()
		return
	}

	if ent.hasValue {
		ent.state = StateStale
		ent.staleSince = time.Now()
	} else {
		ent.state = StateIdle
	}
	notify := s.collectSubs(ent)
	s.mu.Unlock()

	s.logger.Debug().
		Str("key", key.Canonical()).
		Int64("version", version).
		Msg("Fetch aborted")

	notify()
}

// Invalidate forces the entry for key to Stale immediately. The cached
// value is kept; the next load revalidates. An entry that is already
// Fetching is left alone since a refresh is under way.
func (s *Store) Invalidate(key querykey.Key) {
	s.mu.Lock()
	ent, ok := s.entries[key.Canonical()]
	if !ok {
		s.mu.Unlock()
		return
	}
	notify := s.invalidateLocked(ent)
	s.mu.Unlock()
	notify()
}

// InvalidateResource forces every entry belonging to resource to Stale,
// regardless of parameters.
func (s *Store) InvalidateResource(resource string) int {
	var notifiers []func()
	s.mu.Lock()
	count := 0
	for _, ent := range s.entries {
		if !ent.key.HasResource(resource) {
			continue
		}
		notifiers = append(notifiers, s.invalidateLocked(ent))
		count++
	}
	s.mu.Unlock()

	s.logger.Debug().
		Str("resource", resource).
		Int("entries", count).
		Msg("Resource invalidated")

	for _, fn := range notifiers {
		fn()
	}
	return count
}

// invalidateLocked marks one entry stale. Caller must hold s.mu.
func (s *Store) invalidateLocked(ent *entry) func() {
	if ent.state == StateFetching {
		return func() {}
	}
	if ent.hasValue {
		ent.state = StateStale
		if ent.staleSince.IsZero() {
			ent.staleSince = time.Now()
		}
	} else {
		ent.state = StateIdle
	}
	storeInvalidations.Inc()
	return s.collectSubs(ent)
}

// Evict removes the entry for key entirely; used when the resource is
// known deleted.
func (s *Store) Evict(key querykey.Key) {
	s.mu.Lock()
	ent, ok := s.entries[key.Canonical()]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entries, key.Canonical())
	ent.state = StateIdle
	ent.value = nil
	ent.hasValue = false
	notify := s.collectSubs(ent)
	s.mu.Unlock()

	storeEvictions.Inc()
	notify()
}

// Retain records a consumer reference to key, creating an Idle entry if
// none exists. Referenced entries are never swept.
func (s *Store) Retain(key querykey.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(key).refs++
}

// Release drops a consumer reference taken with Retain.
func (s *Store) Release(key querykey.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ent, ok := s.entries[key.Canonical()]; ok && ent.refs > 0 {
		ent.refs--
	}
}

// Sweep removes unreferenced entries that have been stale for longer than
// the eviction grace period and returns how many were removed. With a zero
// grace period Sweep only drops unreferenced entries that never held a
// value and have no subscribers.
func (s *Store) Sweep() int {
	now := time.Now()
	s.mu.Lock()
	removed := 0
	for canonical, ent := range s.entries {
		// Subscribers count as consumer references
		if ent.refs > 0 || len(ent.subs) > 0 || ent.state == StateFetching {
			continue
		}
		if !ent.hasValue && ent.state == StateIdle {
			delete(s.entries, canonical)
			removed++
			continue
		}
		if s.cfg.EvictionGrace <= 0 {
			continue
		}
		s.demoteIfExpired(ent)
		if ent.state != StateStale && ent.state != StateError {
			continue
		}
		staleSince := ent.staleSince
		if staleSince.IsZero() {
			staleSince = ent.updatedAt.Add(s.cfg.TTL)
		}
		if now.Sub(staleSince) > s.cfg.EvictionGrace {
			delete(s.entries, canonical)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		storeEvictions.Add(float64(removed))
		s.logger.Debug().Int("removed", removed).Msg("Sweep complete")
	}
	return removed
}

// Subscribe registers onChange to run on every lifecycle transition of the
// entry for key, creating the entry Idle if absent. The returned function
// removes the subscription.
func (s *Store) Subscribe(key querykey.Key, onChange func(Entry)) func() {
	s.mu.Lock()
	ent := s.getOrCreate(key)
	ent.nextSubID++
	id := ent.nextSubID
	ent.subs[id] = onChange
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ent, ok := s.entries[key.Canonical()]; ok {
			delete(ent.subs, id)
		}
	}
}

// Len returns the number of entries currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// getOrCreate returns the entry for key, creating it Idle if absent.
// Caller must hold s.mu.
func (s *Store) getOrCreate(key querykey.Key) *entry {
	canonical := key.Canonical()
	ent, ok := s.entries[canonical]
	if !ok {
		ent = &entry{
			key:   key,
			state: StateIdle,
			subs:  make(map[int64]func(Entry)),
		}
		s.entries[canonical] = ent
	}
	return ent
}

// demoteIfExpired moves a Fresh entry past its TTL to Stale.
// Caller must hold s.mu.
func (s *Store) demoteIfExpired(ent *entry) {
	if ent.state != StateFresh {
		return
	}
	if s.cfg.TTL <= 0 || time.Since(ent.updatedAt) >= s.cfg.TTL {
		ent.state = StateStale
		ent.staleSince = time.Now()
	}
}

// collectSubs snapshots the entry and its subscribers under the lock and
// returns a closure that delivers the notification after the lock is
// released, so subscriber callbacks may call back into the store.
func (s *Store) collectSubs(ent *entry) func() {
	if len(ent.subs) == 0 {
		return func() {}
	}
	snap := ent.snapshot()
	callbacks := make([]func(Entry), 0, len(ent.subs))
	for _, fn := range ent.subs {
		callbacks = append(callbacks, fn)
	}
	return func() {
		for _, fn := range callbacks {
			fn(snap)
		}
	}
}
