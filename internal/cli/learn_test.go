package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tutor-client/internal/domain"
)

func quiz() domain.Assessment {
	return domain.Assessment{
		ID: "a-1",
		Questions: []domain.Question{
			{ID: "q1", Type: domain.QuestionMCQ, Text: "Pick", Options: []string{"red", "blue"}, Points: 1},
			{ID: "q2", Type: domain.QuestionShortAnswer, Text: "Explain", Points: 2},
		},
	}
}

func TestCollectAnswersPrompts(t *testing.T) {
	var out bytes.Buffer
	answers, err := collectAnswers(quiz(), "", strings.NewReader("2\nbecause\n"), &out)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(answers) != 2 || answers[0].Answer != "blue" || answers[1].Answer != "because" {
		t.Fatalf("unexpected answers %+v", answers)
	}
	if !strings.Contains(out.String(), "2) blue") {
		t.Fatalf("expected numbered options, got %q", out.String())
	}
}

func TestCollectAnswersStopsAtEOF(t *testing.T) {
	answers, err := collectAnswers(quiz(), "", strings.NewReader("red"), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(answers) != 1 || answers[0].Answer != "red" {
		t.Fatalf("expected one answer, got %+v", answers)
	}
}

func TestLoadAnswersFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.yaml")
	if err := os.WriteFile(path, []byte("q1: \"1\"\nq2: a closure\nq9: ignored\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	answers, err := collectAnswers(quiz(), path, nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(answers) != 2 || answers[0].Answer != "red" || answers[1].Answer != "a closure" {
		t.Fatalf("unexpected answers %+v", answers)
	}
}

func TestResolveOptionKeepsFreeText(t *testing.T) {
	q := quiz().Questions[1]
	if got := resolveOption(q, "1"); got != "1" {
		t.Fatalf("free text must not map to an option, got %q", got)
	}
	if got := resolveOption(quiz().Questions[0], "7"); got != "7" {
		t.Fatalf("out of range choice should pass through, got %q", got)
	}
}

func TestPrintGrade(t *testing.T) {
	var out bytes.Buffer
	printGrade(&out, domain.GradeReport{
		TotalScore: 2, MaxScore: 3, Percentage: 0.6667, Passed: false, Feedback: "Keep going",
		QuestionGrades: []domain.QuestionGrade{{QuestionID: "q1", IsCorrect: true, Score: 1, MaxScore: 1}},
	})
	got := out.String()
	if !strings.Contains(got, "FAILED") || !strings.Contains(got, "66.7%") || !strings.Contains(got, "Question 1 [ok]") {
		t.Fatalf("unexpected grade output %q", got)
	}
}
