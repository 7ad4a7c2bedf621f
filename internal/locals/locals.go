// Package locals holds the shared data made visible to the template layer.
package locals

import (
	"maps"
	"sync"
)

// Store is a set of named values shared with templates.
//
// The held map is never mutated once published: writers build a new map and swap it in,
// so a Snapshot stays consistent for as long as the caller holds it.
type Store struct {
	mu   sync.RWMutex
	data map[string]any
}

// New returns a store seeded with a copy of initial.
func New(initial map[string]any) *Store {
	data := maps.Clone(initial)
	if data == nil {
		data = make(map[string]any)
	}
	return &Store{data: data}
}

// Snapshot returns the current set of locals. The returned map must not be modified.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (v any, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok = s.data[key]
	return v, ok
}

// Publish replaces the value stored under key.
//
// Readers either observe the previous set of locals or the new one, never a mix of both.
func (s *Store) Publish(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]any, len(s.data)+1)
	maps.Copy(next, s.data)
	next[key] = value
	s.data = next
}
