// Package protocol decodes the tutor stream's JSON envelopes into typed events.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"tutor-client/internal/domain"
)

// MessageType is the envelope's type tag.
type MessageType string

const (
	TypeSessionStart    MessageType = "session.start"
	TypeTutorStep       MessageType = "tutor.step"
	TypeAssessmentReady MessageType = "assessment.ready"
	TypeTutorComplete   MessageType = "tutor.complete"
	TypeError           MessageType = "error"
)

// Known reports whether t belongs to the closed set the client acts on.
func (t MessageType) Known() bool {
	switch t {
	case TypeSessionStart, TypeTutorStep, TypeAssessmentReady, TypeTutorComplete, TypeError:
		return true
	}
	return false
}

type envelope struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Event is a classified inbound envelope. Data stays opaque until a consumer asks for it.
type Event struct {
	Type      MessageType
	Data      json.RawMessage
	Timestamp string
	Raw       []byte
}

// Known reports whether the event is part of the closed message set.
func (e Event) Known() bool {
	return e.Type.Known()
}

// DecodeError describes a payload that could not be decoded.
type DecodeError struct {
	Type MessageType
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("decode envelope: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses a raw stream frame. Unrecognized types are returned as events, not errors.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, &DecodeError{Err: err}
	}
	if env.Type == "" {
		return Event{}, &DecodeError{Err: fmt.Errorf("missing type")}
	}
	return Event{
		Type:      env.Type,
		Data:      env.Data,
		Timestamp: env.Timestamp,
		Raw:       raw,
	}, nil
}

type assessmentReadyData struct {
	Assessment *domain.Assessment `json:"assessment"`
}

type messageData struct {
	Message string `json:"message"`
}

// Step decodes a tutor.step body.
func Step(ev Event) (domain.TeachingStep, error) {
	var step domain.TeachingStep
	if err := decodeData(ev, &step); err != nil {
		return domain.TeachingStep{}, err
	}
	return step, nil
}

// AssessmentReady decodes an assessment.ready body.
func AssessmentReady(ev Event) (domain.Assessment, error) {
	var data assessmentReadyData
	if err := decodeData(ev, &data); err != nil {
		return domain.Assessment{}, err
	}
	if data.Assessment == nil {
		return domain.Assessment{}, &DecodeError{Type: ev.Type, Err: fmt.Errorf("missing assessment")}
	}
	return *data.Assessment, nil
}

// Message decodes the {message} body carried by tutor.complete and error.
func Message(ev Event) (string, error) {
	var data messageData
	if len(ev.Data) == 0 {
		return "", nil
	}
	if err := decodeData(ev, &data); err != nil {
		return "", err
	}
	return data.Message, nil
}

func decodeData(ev Event, v any) error {
	if len(ev.Data) == 0 || bytes.Equal(ev.Data, []byte("null")) {
		return &DecodeError{Type: ev.Type, Err: fmt.Errorf("missing data")}
	}
	if err := json.Unmarshal(ev.Data, v); err != nil {
		return &DecodeError{Type: ev.Type, Err: err}
	}
	return nil
}

// TopicMessage is the first outbound frame after session.start.
type TopicMessage struct {
	Topic string `json:"topic"`
}

// Pretty renders a frame for display in the session log; invalid JSON is returned verbatim.
func Pretty(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
