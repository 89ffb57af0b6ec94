package memory

import (
	"context"
	"testing"
	"time"

	"tutor-client/internal/domain"
)

func TestEventStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewEventStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = store.Append(ctx, "s1", domain.SessionEvent{Type: "info", Payload: "first", Timestamp: now})
	_ = store.Append(ctx, "s1", domain.SessionEvent{Type: "error", Payload: "second", Timestamp: now.Add(time.Second)})
	_ = store.Append(ctx, "s2", domain.SessionEvent{Type: "info", Payload: "other"})

	events, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 || events[0].Payload != "first" || events[1].Payload != "second" {
		t.Fatalf("expected events in append order, got %+v", events)
	}

	// The returned slice is a copy.
	events[0].Payload = "mutated"
	again, _ := store.List(ctx, "s1")
	if again[0].Payload != "first" {
		t.Fatalf("expected stored events to be immutable, got %+v", again[0])
	}

	if err := store.Reset(ctx, "s1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if events, _ := store.List(ctx, "s1"); len(events) != 0 {
		t.Fatalf("expected empty log after reset, got %d", len(events))
	}
	if events, _ := store.List(ctx, "s2"); len(events) != 1 {
		t.Fatalf("expected other session untouched, got %d", len(events))
	}
}
