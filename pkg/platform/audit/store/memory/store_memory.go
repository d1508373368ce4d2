// Package memory keeps the most recent audit events in a bounded ring.
package memory

import (
	"context"
	"sync"

	audit "tfc/pkg/platform/audit"
)

// DefaultCapacity bounds memory use when no capacity is given.
const DefaultCapacity = 1000

// RingStore is a bounded, thread-safe audit store. When full, the oldest
// event is overwritten.
type RingStore struct {
	mu       sync.Mutex
	events   []audit.Event
	head     int // next write position
	count    int
	capacity int
	dropped  int64
}

// NewRingStore creates a ring with the given capacity.
func NewRingStore(capacity int) *RingStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingStore{
		events:   make([]audit.Event, capacity),
		capacity: capacity,
	}
}

func (s *RingStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == s.capacity {
		s.dropped++
	} else {
		s.count++
	}
	s.events[s.head] = event
	s.head = (s.head + 1) % s.capacity
	return nil
}

// Recent returns up to limit events, newest first. limit <= 0 returns all.
func (s *RingStore) Recent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]audit.Event, n)
	for i := 0; i < n; i++ {
		idx := (s.head - 1 - i + s.capacity) % s.capacity
		out[i] = s.events[idx]
	}
	return out, nil
}

// Len returns the number of retained events.
func (s *RingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Dropped returns how many events were overwritten.
func (s *RingStore) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
