package cli

import (
	"fmt"
	"io"

	"tutor-client/internal/domain"
)

func printStep(out io.Writer, step domain.TeachingStep) {
	fmt.Fprintf(out, "\nStep %d/%d: %s\n%s\n", step.StepNumber, domain.StepsPerSession, step.Title, step.Content)
}

func printAssessment(out io.Writer, a domain.Assessment) {
	fmt.Fprintf(out, "\nAssessment: %s\n", a.Topic)
	fmt.Fprintf(out, "Total points: %d  Pass threshold: %.0f%%  Questions: %d\n",
		a.TotalPoints, a.PassThreshold*100, len(a.Questions))
}

func printGrade(out io.Writer, r domain.GradeReport) {
	verdict := "FAILED"
	if r.Passed {
		verdict = "PASSED"
	}
	fmt.Fprintf(out, "\n%s  %.1f/%.0f (%.1f%%)\n%s\n", verdict, r.TotalScore, r.MaxScore, r.Percentage*100, r.Feedback)
	for i, qg := range r.QuestionGrades {
		mark := "x"
		if qg.IsCorrect {
			mark = "ok"
		}
		fmt.Fprintf(out, "  Question %d [%s] %.1f/%.0f  %s\n", i+1, mark, qg.Score, qg.MaxScore, qg.Feedback)
	}
}
