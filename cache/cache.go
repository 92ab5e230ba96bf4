// Package cache holds previously read EPUB entry content in memory.
//
// A [Registry] maps each archive identity (its canonical file-system path) to
// a [Content] store. Content keeps three independent tiers keyed by entry
// name: decoded text, raw bytes, and arbitrary parsed values produced by
// higher layers (package documents, navigation trees).
//
// There is no size-based eviction. Hosts bound memory by calling
// [Registry.Evict], [Registry.EvictAll] or [Registry.PruneMissingFiles] at
// their own discretion.
//
// All types are safe for concurrent use. Operations are atomic per key only;
// a reader may observe two keys in different states of an update.
package cache

import "sync"

// store is a mutex-guarded map. The zero value is not usable; see newStore.
type store[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

func newStore[V any]() *store[V] {
	return &store[V]{m: make(map[string]V)}
}

func (s *store[V]) get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *store[V]) set(key string, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
}

func (s *store[V]) delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

func (s *store[V]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

func (s *store[V]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.m)
}
