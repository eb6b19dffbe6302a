package repositories

import (
	"sync"
	"time"
)

// SessionStore keeps values in memory keyed by session id and remembers when
// each one was last touched.
type SessionStore[T any] interface {
	Put(id string, v T)
	Get(id string) (T, bool)
	Delete(id string)
	Len() int
	// DeleteIdle removes every entry not touched since cutoff and returns the
	// removed ids.
	DeleteIdle(cutoff time.Time) []string
}

type storeEntry[T any] struct {
	value    T
	lastSeen time.Time
}

type memorySessionStore[T any] struct {
	mu    sync.RWMutex
	items map[string]*storeEntry[T]
	now   func() time.Time
}

func NewMemorySessionStore[T any](now func() time.Time) SessionStore[T] {
	if now == nil {
		now = time.Now
	}
	return &memorySessionStore[T]{
		items: make(map[string]*storeEntry[T]),
		now:   now,
	}
}

func (s *memorySessionStore[T]) Put(id string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = &storeEntry[T]{value: v, lastSeen: s.now()}
}

func (s *memorySessionStore[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	e.lastSeen = s.now()
	return e.value, true
}

func (s *memorySessionStore[T]) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

func (s *memorySessionStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *memorySessionStore[T]) DeleteIdle(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, e := range s.items {
		if e.lastSeen.Before(cutoff) {
			delete(s.items, id)
			removed = append(removed, id)
		}
	}
	return removed
}
