package tle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current dataset.
type Store struct {
	dataset atomic.Pointer[Dataset]
	index   atomic.Pointer[map[int]int]
	mu      sync.Mutex // serializes reloads
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Set atomically replaces the current dataset and its catalog index.
func (s *Store) Set(ds *Dataset) {
	idx := make(map[int]int, len(ds.Satellites))
	for i, e := range ds.Satellites {
		// Later entries for the same object win.
		idx[e.Elements.CatalogNumber] = i
	}
	s.index.Store(&idx)
	s.dataset.Store(ds)
}

// Lookup finds an entry by catalog number.
func (s *Store) Lookup(catalog int) (Entry, bool) {
	ds := s.dataset.Load()
	idx := s.index.Load()
	if ds == nil || idx == nil {
		return Entry{}, false
	}
	i, ok := (*idx)[catalog]
	if !ok || i >= len(ds.Satellites) {
		return Entry{}, false
	}
	return ds.Satellites[i], true
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}

// Lock acquires the reload mutex.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the reload mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}
