package querycache

import (
	"sync"
	"time"

	"github.com/xkelxmc/eden-tanstack-query/edenquery"
)

// InfiniteData is the cached state of an infinite query.
type InfiniteData struct {
	Pages      []any
	PageParams []any
}

func (d InfiniteData) clone() InfiniteData {
	return InfiniteData{
		Pages:      append([]any(nil), d.Pages...),
		PageParams: append([]any(nil), d.PageParams...),
	}
}

// QueryState is a snapshot of one cache entry.
type QueryState struct {
	Key         edenquery.QueryKey
	Data        any
	UpdatedAt   time.Time
	Invalidated bool
}

type entry struct {
	key         edenquery.QueryKey
	data        any
	updatedAt   time.Time
	invalidated bool
	gcTime      time.Duration
}

func (e *entry) state() QueryState {
	data := e.data
	if inf, ok := data.(InfiniteData); ok {
		data = inf.clone()
	}
	return QueryState{Key: e.key, Data: data, UpdatedAt: e.updatedAt, Invalidated: e.invalidated}
}

func (e *entry) expired(now time.Time) bool {
	return e.gcTime > 0 && now.After(e.updatedAt.Add(e.gcTime))
}

func (e *entry) fresh(now time.Time, staleTime time.Duration) bool {
	return !e.invalidated && now.Sub(e.updatedAt) < staleTime
}

// store maps key hashes to immutable entries.
type store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func newStore() *store {
	return &store{entries: make(map[string]*entry)}
}

// get returns the entry for hash, dropping it when past its gc time.
func (s *store) get(hash string, now time.Time) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[hash]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if e.expired(now) {
		s.mu.Lock()
		if cur, ok := s.entries[hash]; ok && cur == e {
			delete(s.entries, hash)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e, true
}

func (s *store) set(hash string, e *entry) {
	s.mu.Lock()
	s.entries[hash] = e
	s.mu.Unlock()
}

// update replaces every live entry with fn(entry) under the write lock.
// A nil result removes the entry. Entries are never modified in place.
func (s *store) update(now time.Time, fn func(e *entry) *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, hash)
			continue
		}
		if next := fn(e); next == nil {
			delete(s.entries, hash)
		} else {
			s.entries[hash] = next
		}
	}
}

func (s *store) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
