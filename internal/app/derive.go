package app

import (
	"strings"

	"tutor-client/internal/domain"
)

// StepBadge is the number shown next to the teaching tab, zero for none.
func StepBadge(s Snapshot) int {
	return len(s.Steps)
}

// AssessmentReady reports whether an assessment can be shown.
func AssessmentReady(s Snapshot) bool {
	return s.Assessment != nil
}

// ShowGeneratingIndicator reports whether the UI should show the waiting
// indicator under a complete set of steps.
func ShowGeneratingIndicator(s Snapshot) bool {
	return s.Generating && len(s.Steps) == domain.StepsPerSession
}

// CanSubmit reports whether a submit would be accepted right now.
func CanSubmit(s Snapshot) bool {
	return s.Assessment != nil && s.Phase == PhaseActive && !s.Pending
}

// CanRetake reports whether a retake would be accepted right now.
func CanRetake(s Snapshot) bool {
	return s.RetakeID != "" && !s.Pending
}

// MissingAnswers lists the questions of a without a non-blank answer, in question order.
func MissingAnswers(a domain.Assessment, answers []domain.Answer) []string {
	given := make(map[string]bool, len(answers))
	for _, ans := range answers {
		if strings.TrimSpace(ans.Answer) != "" {
			given[ans.QuestionID] = true
		}
	}
	var missing []string
	for _, q := range a.Questions {
		if !given[q.ID] {
			missing = append(missing, q.ID)
		}
	}
	return missing
}
