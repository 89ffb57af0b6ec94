package app

import (
	"fmt"

	"tutor-client/internal/domain"
)

// StepAccumulator collects teaching steps in arrival order and derives the
// "generating assessment" signal. Transitions return a new value.
type StepAccumulator struct {
	Steps      []domain.TeachingStep
	Generating bool
}

// AddStep appends a step. A step past StepsPerSession is rejected and the
// accumulator is returned unchanged.
func (a StepAccumulator) AddStep(step domain.TeachingStep) (StepAccumulator, error) {
	if len(a.Steps) >= domain.StepsPerSession {
		return a, fmt.Errorf("step %d: %w", step.StepNumber, domain.ErrTooManySteps)
	}
	steps := make([]domain.TeachingStep, len(a.Steps), len(a.Steps)+1)
	copy(steps, a.Steps)
	next := StepAccumulator{Steps: append(steps, step), Generating: a.Generating}
	if len(next.Steps) == domain.StepsPerSession {
		next.Generating = true
	}
	return next, nil
}

// Complete handles tutor.complete.
func (a StepAccumulator) Complete() StepAccumulator {
	a.Generating = false
	return a
}

// AssessmentArrived handles assessment.ready; the server's word beats the local count.
func (a StepAccumulator) AssessmentArrived() StepAccumulator {
	a.Generating = false
	return a
}
