// Package cache implements the process-wide query cache: a mapping from
// structured keys to entry values plus staleness metadata. Event handlers are
// the only writers; UI layers read snapshots and re-read after mutations.
package cache

import (
	"sync"
	"time"

	"wirebridge/pkg/wirebridge"
)

// UpdateFunc computes the next value for a key from the current one.
// exists is false when the key has no entry; returning write=false leaves
// the store untouched, which is how the absent-key no-op rule is expressed.
type UpdateFunc func(value any, exists bool) (next any, write bool)

// RefetchHook is invoked after an entry is marked stale so the owning view
// can refetch. Hooks must be fire-and-forget: they run on the caller's
// goroutine and must not block.
type RefetchHook func(key wirebridge.Key)

// Option mutates store configuration.
type Option func(*Store)

// WithClock injects a time source, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(store *Store) {
		if clock != nil {
			store.clock = clock
		}
	}
}

// WithRefetchHook registers the stale-entry refetch hook.
func WithRefetchHook(hook RefetchHook) Option {
	return func(store *Store) {
		store.onStale = hook
	}
}

// Store is the query cache. Writes are full-entry replaces: readers never
// observe an entry mid-mutation. The mutex exists for external readers;
// writers are sequential by construction (the single event dispatch loop).
type Store struct {
	mu      sync.RWMutex
	entries map[wirebridge.Key]entry
	clock   func() time.Time
	onStale RefetchHook
}

type entry struct {
	value     any
	fetchedAt time.Time
	stale     bool
}

// New creates an empty store.
func New(options ...Option) *Store {
	store := &Store{
		entries: make(map[wirebridge.Key]entry),
		clock:   time.Now,
	}
	for _, option := range options {
		option(store)
	}

	return store
}

// Get returns the entry value for key. Stale entries are still returned so
// views keep showing data while a refetch is in flight.
func (s *Store) Get(key wirebridge.Key) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, exists := s.entries[key]
	if !exists {
		return nil, false
	}

	return stored.value, true
}

// FetchedAt returns when the entry was last written.
func (s *Store) FetchedAt(key wirebridge.Key) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, exists := s.entries[key]
	if !exists {
		return time.Time{}, false
	}

	return stored.fetchedAt, true
}

// Stale reports whether the entry has been invalidated since its last write.
func (s *Store) Stale(key wirebridge.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, exists := s.entries[key]

	return exists && stored.stale
}

// Set overwrites the entry unconditionally, clearing staleness. Used after a
// fresh fetch and by handlers that rebuild an entry wholesale.
func (s *Store) Set(key wirebridge.Key, value any) {
	now := s.clock()

	s.mu.Lock()
	s.entries[key] = entry{value: value, fetchedAt: now}
	s.mu.Unlock()
}

// Update applies fn to the current value and writes the result as a full
// replacement. fn may be invoked for an absent key; unless it opts in by
// returning write=true, the store is left untouched.
func (s *Store) Update(key wirebridge.Key, fn UpdateFunc) bool {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.entries[key]
	next, write := fn(stored.value, exists)
	if !write {
		return false
	}

	fetchedAt := now
	if exists {
		fetchedAt = stored.fetchedAt
	}
	s.entries[key] = entry{value: next, fetchedAt: fetchedAt, stale: stored.stale}

	return true
}

// Keys returns every cached key in the namespace, including the pending
// variant. Order is unspecified.
func (s *Store) Keys(namespace wirebridge.Namespace) []wirebridge.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]wirebridge.Key, 0)
	for key := range s.entries {
		if key.InNamespace(namespace) {
			keys = append(keys, key)
		}
	}

	return keys
}

// InvalidateKey marks one entry stale without deleting its data, so the
// owning view refetches without flicker. Marking a missing key is a no-op.
func (s *Store) InvalidateKey(key wirebridge.Key) {
	s.markStale([]wirebridge.Key{key})
}

// Invalidate marks every entry in the namespace stale.
func (s *Store) Invalidate(namespace wirebridge.Namespace) {
	s.markStale(s.Keys(namespace))
}

// InvalidateAll marks an explicit set of unrelated keys stale. Used by the
// generic cache:invalidate event.
func (s *Store) InvalidateAll(keys []wirebridge.Key) {
	s.markStale(keys)
}

// Clear drops every entry. Used when the session ends and the entire cache
// becomes meaningless.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[wirebridge.Key]entry)
	s.mu.Unlock()
}

// markStale flags entries and fires the refetch hook outside the lock.
func (s *Store) markStale(keys []wirebridge.Key) {
	flagged := make([]wirebridge.Key, 0, len(keys))

	s.mu.Lock()
	for _, key := range keys {
		stored, exists := s.entries[key]
		if !exists || stored.stale {
			continue
		}
		stored.stale = true
		s.entries[key] = stored
		flagged = append(flagged, key)
	}
	hook := s.onStale
	s.mu.Unlock()

	if hook == nil {
		return
	}
	for _, key := range flagged {
		hook(key)
	}
}
