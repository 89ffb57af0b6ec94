package app

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tutor-client/internal/domain"
)

// AssessmentPhase is the assessment lifecycle state.
type AssessmentPhase string

const (
	PhaseNone      AssessmentPhase = "none"
	PhaseActive    AssessmentPhase = "active"
	PhaseSubmitted AssessmentPhase = "submitted"
)

// AssessmentState holds the current assessment, its grade report and the
// identity used for retakes, plus the transient answer draft.
type AssessmentState struct {
	Current  *domain.Assessment
	Grade    *domain.GradeReport
	RetakeID string
	Phase    AssessmentPhase
	// Attempt counts retakes of the current session.
	Attempt int

	draft map[string]string
}

func newAssessmentState() AssessmentState {
	return AssessmentState{Phase: PhaseNone, draft: make(map[string]string)}
}

func (s *AssessmentState) onReady(a domain.Assessment) {
	s.Current = &a
	s.RetakeID = a.ID
	s.Grade = nil
	s.Phase = PhaseActive
	s.draft = make(map[string]string)
}

func (s *AssessmentState) applyGrade(assessmentID string, report domain.GradeReport) {
	s.Grade = &report
	s.RetakeID = assessmentID
	s.Phase = PhaseSubmitted
}

func (s *AssessmentState) applyRetake(outcome domain.RetakeOutcome) {
	a := outcome.RetakeAssessment()
	s.Current = &a
	s.RetakeID = a.ID
	s.Grade = nil
	s.Phase = PhaseActive
	s.Attempt++
	s.draft = make(map[string]string)
}

func (s *AssessmentState) setAnswer(questionID, text string) error {
	if s.Current == nil {
		return domain.ErrNoAssessment
	}
	for _, q := range s.Current.Questions {
		if q.ID == questionID {
			s.draft[questionID] = text
			return nil
		}
	}
	return fmt.Errorf("%s: %w", questionID, domain.ErrQuestionNotFound)
}

// answers returns the draft in question order.
func (s *AssessmentState) answers() []domain.Answer {
	if s.Current == nil || len(s.draft) == 0 {
		return nil
	}
	out := make([]domain.Answer, 0, len(s.draft))
	for _, q := range s.Current.Questions {
		if text, ok := s.draft[q.ID]; ok {
			out = append(out, domain.Answer{QuestionID: q.ID, Answer: text})
		}
	}
	return out
}

// SetAnswer records or overwrites the draft answer for one question.
func (e *Engine) SetAnswer(questionID, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.assessment.setAnswer(questionID, text); err != nil {
		return err
	}
	e.broadcastLocked()
	return nil
}

// Answers returns the current answer draft.
func (e *Engine) Answers() []domain.Answer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assessment.answers()
}

// Submit sends answers for grading against the current assessment. It does not
// check completeness; see MissingAnswers. The state is only changed when the
// grade report still belongs to the current session and assessment.
func (e *Engine) Submit(ctx context.Context, answers []domain.Answer) (domain.GradeReport, error) {
	e.mu.Lock()
	if e.assessment.Current == nil {
		e.mu.Unlock()
		return domain.GradeReport{}, domain.ErrNoAssessment
	}
	if !e.inflight.TryAcquire(1) {
		e.mu.Unlock()
		return domain.GradeReport{}, domain.ErrRequestInFlight
	}
	epoch := e.epoch
	assessmentID := e.assessment.Current.ID
	e.pending = true
	e.broadcastLocked()
	e.mu.Unlock()

	ctx, span := tracer.Start(ctx, "submit assessment", trace.WithAttributes(
		attribute.String("assessment.id", assessmentID),
		attribute.Int("assessment.answers", len(answers)),
	))
	defer span.End()

	report, err := e.client.Submit(ctx, assessmentID, answers)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = false
	e.inflight.Release(1)
	defer e.broadcastLocked()

	if epoch != e.epoch {
		e.logger.Info("discarding stale submit result", "assessment", assessmentID)
		span.SetStatus(codes.Error, "stale")
		return domain.GradeReport{}, domain.ErrStaleResponse
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.appendLocked(domain.EventError, "Error submitting assessment: "+err.Error())
		return domain.GradeReport{}, fmt.Errorf("submit assessment %s: %w", assessmentID, err)
	}
	if e.assessment.Current == nil || e.assessment.Current.ID != assessmentID {
		e.logger.Info("discarding grade for superseded assessment", "assessment", assessmentID)
		span.SetStatus(codes.Error, "stale")
		return domain.GradeReport{}, domain.ErrStaleResponse
	}

	e.assessment.applyGrade(assessmentID, report)
	verdict := "failed"
	if report.Passed {
		verdict = "passed"
	}
	e.appendLocked(domain.EventInfo, fmt.Sprintf("Assessment %s %s: %.1f/%.0f (%.1f%%)",
		assessmentID, verdict, report.TotalScore, report.MaxScore, report.Percentage*100))
	return report, nil
}

// Retake asks for another attempt at the assessment identified by the retake
// identity. With generateNew the server issues a new assessment; otherwise the
// same questions come back. Either way the answer draft and grade report are
// cleared. On failure nothing changes.
func (e *Engine) Retake(ctx context.Context, generateNew bool) (domain.RetakeOutcome, error) {
	e.mu.Lock()
	if e.assessment.RetakeID == "" {
		e.mu.Unlock()
		return nil, domain.ErrNoRetakeIdentity
	}
	if !e.inflight.TryAcquire(1) {
		e.mu.Unlock()
		return nil, domain.ErrRequestInFlight
	}
	epoch := e.epoch
	retakeID := e.assessment.RetakeID
	e.pending = true
	e.broadcastLocked()
	e.mu.Unlock()

	ctx, span := tracer.Start(ctx, "retake assessment", trace.WithAttributes(
		attribute.String("assessment.id", retakeID),
		attribute.Bool("assessment.generate_new", generateNew),
	))
	defer span.End()

	resp, err := e.client.Retake(ctx, retakeID, generateNew)
	if err == nil && resp.Assessment == nil {
		err = domain.ErrMissingAssessment
		if resp.Message != "" {
			err = fmt.Errorf("%s: %w", resp.Message, domain.ErrMissingAssessment)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = false
	e.inflight.Release(1)
	defer e.broadcastLocked()

	if epoch != e.epoch || e.assessment.RetakeID != retakeID {
		e.logger.Info("discarding stale retake result", "assessment", retakeID)
		span.SetStatus(codes.Error, "stale")
		return nil, domain.ErrStaleResponse
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.appendLocked(domain.EventError, "Error retaking assessment: "+err.Error())
		return nil, fmt.Errorf("retake assessment %s: %w", retakeID, err)
	}

	var outcome domain.RetakeOutcome
	if generateNew {
		outcome = domain.NewContent{Assessment: *resp.Assessment}
		e.appendLocked(domain.EventInfo, "New assessment generated with fresh questions! Good luck!")
		if len(resp.RemediationSteps) > 0 {
			e.appendLocked(domain.EventInfo, "Tip: Review teaching steps "+joinSteps(resp.RemediationSteps)+" before retaking.")
		}
	} else {
		outcome = domain.SameContent{Assessment: *resp.Assessment}
		e.appendLocked(domain.EventInfo, "Same assessment loaded. Review the teaching steps before retaking.")
	}
	e.assessment.applyRetake(outcome)
	span.SetAttributes(attribute.String("assessment.next_id", resp.Assessment.ID))
	return outcome, nil
}

func joinSteps(steps []int) string {
	parts := make([]string, len(steps))
	for i, n := range steps {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
