package memory

import (
	"context"
	"sync"

	"tutor-client/internal/domain"
)

// EventStore is an in-memory implementation of app.EventRepository.
type EventStore struct {
	mu     sync.RWMutex
	events map[string][]domain.SessionEvent
}

func NewEventStore() *EventStore {
	return &EventStore{
		events: make(map[string][]domain.SessionEvent),
	}
}

func (s *EventStore) Append(_ context.Context, sessionID string, event domain.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[sessionID] = append(s.events[sessionID], event)
	return nil
}

func (s *EventStore) List(_ context.Context, sessionID string) ([]domain.SessionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[sessionID]
	out := make([]domain.SessionEvent, len(events))
	copy(out, events)
	return out, nil
}

func (s *EventStore) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, sessionID)
	return nil
}
