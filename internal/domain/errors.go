package domain

import "errors"

var (
	// ErrTopicRequired is returned when connecting without a topic.
	ErrTopicRequired = errors.New("topic is required")
	// ErrHandshake is reported when session.start arrives and no topic is available to send.
	ErrHandshake = errors.New("handshake failed: no topic available to send")
	// ErrTooManySteps marks a teaching step received after the sequence is full.
	ErrTooManySteps = errors.New("teaching step exceeds expected count")
	// ErrNotConnected is returned when the stream is required but closed.
	ErrNotConnected = errors.New("stream not connected")
	// ErrStreamClosed is returned by streams that were closed normally.
	ErrStreamClosed = errors.New("stream closed")
	// ErrNoAssessment is returned when submitting without a current assessment.
	ErrNoAssessment = errors.New("no current assessment")
	// ErrNoRetakeIdentity is returned when retaking before any assessment was issued.
	ErrNoRetakeIdentity = errors.New("no assessment to retake")
	// ErrRequestInFlight is returned when a submit or retake is already pending.
	ErrRequestInFlight = errors.New("assessment request already in flight")
	// ErrStaleResponse indicates a result arrived after the session or assessment changed.
	ErrStaleResponse = errors.New("response belongs to a superseded session")
	// ErrMissingGradeReport indicates a submit reply without a grade report.
	ErrMissingGradeReport = errors.New("response has no grade report")
	// ErrMissingAssessment indicates a retake reply without an assessment.
	ErrMissingAssessment = errors.New("response has no assessment")
)

var (
	// ErrConnectCanceled is returned when a newer Connect or a Disconnect overtakes a pending dial.
	ErrConnectCanceled = errors.New("connect canceled")
	// ErrQuestionNotFound indicates an answer for a question the assessment does not have.
	ErrQuestionNotFound = errors.New("question not found")
)
