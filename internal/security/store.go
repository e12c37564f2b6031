package security

import "sync"

// Store holds the keyed mutable state shared by concurrent requests: lockout
// records, rate windows, and consumed nonces. Update runs fn under the store
// lock, so increment-and-compare sequences are atomic per key. fn receives the
// current value (if any) and returns the next value plus whether to keep it;
// returning false deletes the entry.
type Store[V any] interface {
	Get(key string) (V, bool)
	Update(key string, fn func(value V, exists bool) (V, bool)) V
	Delete(key string)
	Sweep(expired func(value V) bool) int
}

// MemoryStore is a mutex-guarded map. All state is process-local: it is lost
// on restart and not shared across horizontally scaled instances. A deployment
// that needs shared state should substitute an implementation backed by an
// external cache.
type MemoryStore[V any] struct {
	mu      sync.Mutex
	entries map[string]V
}

func NewMemoryStore[V any]() *MemoryStore[V] {
	return &MemoryStore[V]{entries: make(map[string]V)}
}

func (s *MemoryStore[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.entries[key]
	return value, ok
}

func (s *MemoryStore[V]) Update(key string, fn func(value V, exists bool) (V, bool)) V {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entries[key]
	next, keep := fn(current, ok)
	if keep {
		s.entries[key] = next
	} else {
		delete(s.entries, key)
	}
	return next
}

func (s *MemoryStore[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}

func (s *MemoryStore[V]) Sweep(expired func(value V) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, value := range s.entries {
		if expired(value) {
			delete(s.entries, key)
			deleted++
		}
	}
	return deleted
}

func (s *MemoryStore[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}
