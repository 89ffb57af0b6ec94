package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"tutor-client/internal/domain"
	"tutor-client/internal/protocol"
)

// Stream is one open stream channel. Reads happen on a single goroutine.
type Stream interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens the stream channel routed by session id.
type Dialer interface {
	Dial(ctx context.Context, sessionID string) (Stream, error)
}

// AssessmentClient is the request/response collaborator for grading.
type AssessmentClient interface {
	Submit(ctx context.Context, assessmentID string, answers []domain.Answer) (domain.GradeReport, error)
	Retake(ctx context.Context, assessmentID string, generateNew bool) (domain.RetakeResponse, error)
}

// Snapshot is a copy of the session state at one point in time.
type Snapshot struct {
	Session      domain.Session
	Steps        []domain.TeachingStep
	Generating   bool
	Assessment   *domain.Assessment
	GradeReport  *domain.GradeReport
	RetakeID     string
	Phase        AssessmentPhase
	Attempt      int
	Answers      []domain.Answer
	Pending      bool
	LastError    string
	HandshakeErr error
}

// Engine is the client side of a tutoring session. It owns the single stream
// channel and reconciles stream events with submit and retake requests.
type Engine struct {
	dialer   Dialer
	client   AssessmentClient
	log      *EventLog
	logger   *slog.Logger
	inflight *semaphore.Weighted

	mu           sync.Mutex
	epoch        uint64
	session      domain.Session
	conn         *connection
	steps        StepAccumulator
	assessment   AssessmentState
	pending      bool
	lastError    string
	handshakeErr error
	subscribers  map[chan Snapshot]struct{}
}

// connection ties an open stream to the session epoch that opened it.
type connection struct {
	epoch  uint64
	stream Stream
}

func NewEngine(dialer Dialer, client AssessmentClient, events EventRepository, logger *slog.Logger) *Engine {
	return NewEngineWithClock(dialer, client, events, logger, time.Now)
}

// NewEngineWithClock allows deterministic log timestamps in tests.
func NewEngineWithClock(dialer Dialer, client AssessmentClient, events EventRepository, logger *slog.Logger, now func() time.Time) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		dialer:      dialer,
		client:      client,
		log:         newEventLog(events, now, logger),
		logger:      logger,
		inflight:    semaphore.NewWeighted(1),
		session:     domain.Session{State: domain.StateDisconnected},
		assessment:  newAssessmentState(),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// NewSessionID returns a time-ordered session identifier.
func NewSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("session-%d", time.Now().UnixMilli())
	}
	return "session-" + id.String()
}

// Connect tears down any open channel and starts a fresh session for topic.
// All session-scoped state is reset once the channel is open; a reconnect never resumes.
func (e *Engine) Connect(ctx context.Context, sessionID, topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return domain.ErrTopicRequired
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = NewSessionID()
	}

	e.mu.Lock()
	e.closeLocked("Connection replaced")
	e.epoch++
	epoch := e.epoch
	e.session = domain.Session{ID: sessionID, Topic: topic, State: domain.StateConnecting}
	e.broadcastLocked()
	e.mu.Unlock()

	stream, err := e.dialer.Dial(ctx, sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch || e.session.State != domain.StateConnecting {
		if stream != nil {
			_ = stream.Close()
		}
		return fmt.Errorf("connect %s: %w", sessionID, domain.ErrConnectCanceled)
	}
	if err != nil {
		e.session.State = domain.StateDisconnected
		e.broadcastLocked()
		return fmt.Errorf("connect %s: %w", sessionID, err)
	}

	e.steps = StepAccumulator{}
	e.assessment = newAssessmentState()
	e.lastError = ""
	e.handshakeErr = nil
	e.log.reset(sessionID)

	conn := &connection{epoch: epoch, stream: stream}
	e.conn = conn
	e.session.State = domain.StateConnected
	e.appendLocked(domain.EventInfo, "Connected to server")
	e.logger.Info("session connected", "session", sessionID, "topic", topic)
	e.broadcastLocked()

	go e.readLoop(conn)
	return nil
}

// Disconnect closes the channel if one is open. Calling it again is a no-op.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.State == domain.StateDisconnected {
		return
	}
	e.closeLocked("Disconnected")
	e.broadcastLocked()
}

// Close disconnects and waits for pending log writes. The engine is unusable afterwards.
func (e *Engine) Close() {
	e.Disconnect()
	e.log.close()
}

func (e *Engine) closeLocked(reason string) {
	if e.conn != nil {
		conn := e.conn
		e.conn = nil
		if err := conn.stream.Close(); err != nil {
			e.logger.Debug("close stream", "session", e.session.ID, "error", err)
		}
		e.appendLocked(domain.EventConnectionClosed, reason)
	}
	e.session.State = domain.StateDisconnected
}

func (e *Engine) readLoop(conn *connection) {
	for {
		raw, err := conn.stream.ReadMessage()
		if err != nil {
			e.handleClose(conn, err)
			return
		}
		e.handleFrame(conn, raw)
	}
}

// handleClose moves to disconnected regardless of cause; a non-normal close is
// logged as a channel error first.
func (e *Engine) handleClose(conn *connection, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != conn {
		return
	}
	if err != nil && !errors.Is(err, domain.ErrStreamClosed) {
		e.appendLocked(domain.EventConnectionError, fmt.Sprintf("WebSocket error occurred: %v", err))
	}
	e.conn = nil
	_ = conn.stream.Close()
	e.session.State = domain.StateDisconnected
	e.appendLocked(domain.EventConnectionClosed, "Connection closed")
	e.logger.Info("session stream closed", "session", e.session.ID)
	e.broadcastLocked()
}

// handleFrame processes one inbound frame to completion.
func (e *Engine) handleFrame(conn *connection, raw []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != conn {
		return
	}
	defer e.broadcastLocked()

	ev, err := protocol.Decode(raw)
	if err != nil {
		e.appendLocked(domain.EventDecodeError, "Error: "+err.Error())
		return
	}
	e.appendLocked(string(ev.Type), protocol.Pretty(raw))

	switch ev.Type {
	case protocol.TypeSessionStart:
		e.handshakeLocked(conn)

	case protocol.TypeTutorStep:
		step, err := protocol.Step(ev)
		if err != nil {
			e.appendLocked(domain.EventDecodeError, "Error: "+err.Error())
			return
		}
		next, err := e.steps.AddStep(step)
		if err != nil {
			e.appendLocked(domain.EventProtocolViolation, "Error: "+err.Error())
			return
		}
		e.steps = next

	case protocol.TypeAssessmentReady:
		assessment, err := protocol.AssessmentReady(ev)
		if err != nil {
			e.appendLocked(domain.EventDecodeError, "Error: "+err.Error())
			return
		}
		e.steps = e.steps.AssessmentArrived()
		e.assessment.onReady(assessment)

	case protocol.TypeTutorComplete:
		e.steps = e.steps.Complete()
		msg, err := protocol.Message(ev)
		if err != nil {
			e.appendLocked(domain.EventDecodeError, "Error: "+err.Error())
			return
		}
		if msg != "" {
			e.appendLocked(domain.EventInfo, msg)
		}

	case protocol.TypeError:
		msg, err := protocol.Message(ev)
		if err != nil {
			e.appendLocked(domain.EventDecodeError, "Error: "+err.Error())
			return
		}
		e.lastError = msg
		e.appendLocked(domain.EventError, "Error: "+msg)
	}
}

// handshakeLocked sends the session topic; the server streams nothing until it arrives.
func (e *Engine) handshakeLocked(conn *connection) {
	topic := e.session.Topic
	if err := sendTopic(conn.stream, topic); err != nil {
		if errors.Is(err, domain.ErrHandshake) {
			e.handshakeErr = err
			e.appendLocked(domain.EventHandshakeError, "Error: No topic available to send")
			return
		}
		e.appendLocked(domain.EventConnectionError, "Error: "+err.Error())
		return
	}
	e.appendLocked(domain.EventTopicSent, "Sent topic: "+topic)
}

func sendTopic(stream Stream, topic string) error {
	if strings.TrimSpace(topic) == "" {
		return domain.ErrHandshake
	}
	if err := stream.WriteJSON(protocol.TopicMessage{Topic: topic}); err != nil {
		return fmt.Errorf("send topic: %w", err)
	}
	return nil
}

func (e *Engine) appendLocked(typ, payload string) {
	e.log.append(e.session.ID, typ, payload)
}

// Events returns the current session's log in append order.
func (e *Engine) Events(ctx context.Context) ([]domain.SessionEvent, error) {
	e.mu.Lock()
	sessionID := e.session.ID
	e.mu.Unlock()
	if sessionID == "" {
		return nil, nil
	}
	return e.log.list(ctx, sessionID)
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		Session:      e.session,
		Steps:        append([]domain.TeachingStep(nil), e.steps.Steps...),
		Generating:   e.steps.Generating,
		RetakeID:     e.assessment.RetakeID,
		Phase:        e.assessment.Phase,
		Attempt:      e.assessment.Attempt,
		Answers:      e.assessment.answers(),
		Pending:      e.pending,
		LastError:    e.lastError,
		HandshakeErr: e.handshakeErr,
	}
	if e.assessment.Current != nil {
		a := *e.assessment.Current
		s.Assessment = &a
	}
	if e.assessment.Grade != nil {
		g := *e.assessment.Grade
		s.GradeReport = &g
	}
	return s
}

// Subscribe returns a channel that receives a snapshot after every transition.
// The caller must invoke the returned cancel function to avoid leaks.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	ch <- e.snapshotLocked()
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) broadcastLocked() {
	if len(e.subscribers) == 0 {
		return
	}
	s := e.snapshotLocked()
	for ch := range e.subscribers {
		select {
		case ch <- s:
		default:
			// Slow subscriber: drop its oldest snapshot in favour of the newest.
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}
