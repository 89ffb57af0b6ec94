package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tutor-client/internal/domain"
)

// EventStore mirrors the session log into a Redis list per session so other
// processes can follow a session. Entries are JSON-encoded SessionEvents:
//
//	RPUSH tutor:session:{sessionID}:events {json}
//
// The key expires ttl after the last append.
type EventStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEventStore(client *redis.Client, ttl time.Duration) *EventStore {
	return &EventStore{client: client, ttl: ttl}
}

func (s *EventStore) Append(ctx context.Context, sessionID string, event domain.SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}
	key := s.key(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append session event: %w", err)
	}
	return nil
}

func (s *EventStore) List(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	raw, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list session events: %w", err)
	}
	events := make([]domain.SessionEvent, 0, len(raw))
	for _, item := range raw {
		var ev domain.SessionEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("unmarshal session event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *EventStore) Reset(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("reset session events: %w", err)
	}
	return nil
}

func (s *EventStore) key(sessionID string) string {
	return "tutor:session:" + sessionID + ":events"
}
