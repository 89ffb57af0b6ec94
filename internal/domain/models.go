package domain

import "time"

// ConnectionState is the lifecycle state of the stream channel.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// Session identifies one tutoring interaction bound to a single channel and topic.
type Session struct {
	ID    string
	Topic string
	State ConnectionState
}

// StepsPerSession is the fixed number of teaching steps the agent streams.
const StepsPerSession = 5

// TeachingStep is one streamed unit of teaching content.
type TeachingStep struct {
	StepNumber int    `json:"step_number"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

// QuestionType is the wire value of a question's kind.
type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionShortAnswer QuestionType = "short_answer"
	QuestionCoding      QuestionType = "coding"
)

// MultipleChoice reports whether answers are picked from Options.
// Every other type is answered with free text.
func (t QuestionType) MultipleChoice() bool {
	return t == QuestionMCQ
}

// Question is a single assessment item.
type Question struct {
	ID      string       `json:"id"`
	Type    QuestionType `json:"type"`
	Text    string       `json:"question"`
	Options []string     `json:"options,omitempty"`
	Points  int          `json:"points"`
}

// Assessment is issued by the agent after teaching. It is never mutated, only superseded.
type Assessment struct {
	ID               string     `json:"id"`
	Topic            string     `json:"topic"`
	Questions        []Question `json:"questions"`
	TotalPoints      int        `json:"total_points"`
	PassThreshold    float64    `json:"pass_threshold"`
	TimeLimitMinutes *int       `json:"time_limit_minutes,omitempty"`
}

// Answer is a client-held response to one question.
type Answer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// QuestionGrade is the per-question part of a grade report.
type QuestionGrade struct {
	QuestionID       string  `json:"question_id"`
	IsCorrect        bool    `json:"is_correct"`
	Score            float64 `json:"score"`
	MaxScore         float64 `json:"max_score"`
	Feedback         string  `json:"feedback"`
	RemediationSteps []int   `json:"remediation_steps,omitempty"`
}

// GradeReport is the grading service's verdict for a submitted assessment.
type GradeReport struct {
	AssessmentID   string          `json:"assessment_id"`
	TotalScore     float64         `json:"total_score"`
	MaxScore       float64         `json:"max_score"`
	Percentage     float64         `json:"percentage"` // fraction in [0,1]
	Passed         bool            `json:"passed"`
	Feedback       string          `json:"feedback"`
	QuestionGrades []QuestionGrade `json:"question_grades"`
}

// RetakeResponse is the raw reply of the retake endpoint.
type RetakeResponse struct {
	Assessment       *Assessment `json:"assessment,omitempty"`
	RemediationSteps []int       `json:"remediation_steps,omitempty"`
	Message          string      `json:"message,omitempty"`
}

// RetakeOutcome tells whether a retake restored the same assessment or issued a new one.
type RetakeOutcome interface {
	RetakeAssessment() Assessment
	isRetakeOutcome()
}

// SameContent is the outcome of a retake that keeps the previous questions.
type SameContent struct {
	Assessment Assessment
}

// NewContent is the outcome of a retake that regenerated the assessment.
type NewContent struct {
	Assessment Assessment
}

func (o SameContent) RetakeAssessment() Assessment { return o.Assessment }
func (o NewContent) RetakeAssessment() Assessment  { return o.Assessment }
func (SameContent) isRetakeOutcome()                {}
func (NewContent) isRetakeOutcome()                 {}

// SessionEvent is an entry of the append-only session log.
type SessionEvent struct {
	Type      string    `json:"type"`
	Payload   string    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Client-derived event tags. Inbound events are logged under their wire type.
const (
	EventInfo              = "info"
	EventError             = "error"
	EventDecodeError       = "decode.error"
	EventHandshakeError    = "handshake.error"
	EventProtocolViolation = "protocol.violation"
	EventTopicSent         = "topic.sent"
	EventConnectionError   = "connection.error"
	EventConnectionClosed  = "connection.closed"
)
