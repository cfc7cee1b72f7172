package memory

import (
	"context"
	"sync"

	audit "kuruma/pkg/platform/audit"
)

// DefaultCapacity is how many events an InMemoryStore keeps by default.
const DefaultCapacity = 10_000

// InMemoryStore keeps the most recent events in a fixed-size ring. Once full,
// each append overwrites the oldest event.
type InMemoryStore struct {
	mu       sync.RWMutex
	events   []audit.Event
	next     int
	capacity int
}

type Option func(*InMemoryStore)

// WithCapacity bounds the number of retained events. Values below one are
// ignored.
func WithCapacity(n int) Option {
	return func(s *InMemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) < s.capacity {
		s.events = append(s.events, event)
		return nil
	}
	s.events[s.next] = event
	s.next = (s.next + 1) % s.capacity
	return nil
}

// ListRecent returns up to limit retained events, oldest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := make([]audit.Event, 0, len(s.events))
	ordered = append(ordered, s.events[s.next:]...)
	ordered = append(ordered, s.events[:s.next]...)
	start := max(0, len(ordered)-limit)
	return ordered[start:], nil
}
