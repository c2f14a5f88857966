package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps events in process. It backs development mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	byID   map[uuid.UUID]int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[uuid.UUID]int)}
}

func (s *MemoryStore) Append(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[ev.ID]; ok {
		return ErrDuplicate
	}
	s.byID[ev.ID] = len(s.events)
	s.events = append(s.events, ev)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return s.events[i], nil
}

// All returns every event in insertion order.
func (s *MemoryStore) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *MemoryStore) ListByActor(_ context.Context, actorID string, offset, limit int) ([]Event, error) {
	return s.list(offset, limit, func(ev Event) bool { return ev.ActorID == actorID }), nil
}

func (s *MemoryStore) ListByResource(_ context.Context, resource string, offset, limit int) ([]Event, error) {
	return s.list(offset, limit, func(ev Event) bool { return ev.ResourceName == resource }), nil
}

// list walks newest first. Events are appended roughly in time order, so
// insertion order stands in for timestamp order.
func (s *MemoryStore) list(offset, limit int, match func(Event) bool) []Event {
	skip, limit := clampOffset(offset), clampLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Event{}
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if !match(s.events[i]) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, s.events[i])
	}
	return out
}
