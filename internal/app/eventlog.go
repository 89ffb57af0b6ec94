package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tutor-client/internal/domain"
)

// EventRepository stores session log entries (in-memory, Redis, etc).
type EventRepository interface {
	Append(ctx context.Context, sessionID string, event domain.SessionEvent) error
	List(ctx context.Context, sessionID string) ([]domain.SessionEvent, error)
	Reset(ctx context.Context, sessionID string) error
}

// eventWriteTimeout bounds a single repository write.
const eventWriteTimeout = 5 * time.Second

type logOpKind int

const (
	opAppend logOpKind = iota
	opReset
	opFlush
)

type logOp struct {
	kind      logOpKind
	sessionID string
	event     domain.SessionEvent
	done      chan struct{}
}

// EventLog is the append-only observability record of a session. Nothing reads
// it to make decisions. Writes are queued and applied in order by one writer
// goroutine, so callers never wait on the repository.
type EventLog struct {
	repo   EventRepository
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	queue   []logOp
	wake    chan struct{}
	closed  bool
	stopped chan struct{}
}

func newEventLog(repo EventRepository, now func() time.Time, logger *slog.Logger) *EventLog {
	l := &EventLog{
		repo:    repo,
		now:     now,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *EventLog) append(sessionID, typ, payload string) {
	ev := domain.SessionEvent{Type: typ, Payload: payload, Timestamp: l.now()}
	if typ == domain.EventError || typ == domain.EventHandshakeError || typ == domain.EventDecodeError {
		l.logger.Warn("session event", "session", sessionID, "type", typ, "payload", payload)
	} else {
		l.logger.Debug("session event", "session", sessionID, "type", typ)
	}
	l.enqueue(logOp{kind: opAppend, sessionID: sessionID, event: ev})
}

func (l *EventLog) reset(sessionID string) {
	l.enqueue(logOp{kind: opReset, sessionID: sessionID})
}

// list waits for queued writes to land, then reads the stored log.
func (l *EventLog) list(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	done := make(chan struct{})
	if l.enqueue(logOp{kind: opFlush, done: done}) {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return l.repo.List(ctx, sessionID)
}

// close stops the writer after the queue drains.
func (l *EventLog) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	l.signal()
	<-l.stopped
}

func (l *EventLog) enqueue(op logOp) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, op)
	l.mu.Unlock()
	l.signal()
	return true
}

func (l *EventLog) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *EventLog) run() {
	defer close(l.stopped)
	for range l.wake {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, op := range batch {
			l.apply(op)
		}
		if closed {
			return
		}
	}
}

func (l *EventLog) apply(op logOp) {
	if op.kind == opFlush {
		close(op.done)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventWriteTimeout)
	defer cancel()
	switch op.kind {
	case opAppend:
		if err := l.repo.Append(ctx, op.sessionID, op.event); err != nil {
			l.logger.Warn("append session event failed", "session", op.sessionID, "type", op.event.Type, "error", err)
		}
	case opReset:
		if err := l.repo.Reset(ctx, op.sessionID); err != nil {
			l.logger.Warn("reset session log failed", "session", op.sessionID, "error", err)
		}
	}
}
