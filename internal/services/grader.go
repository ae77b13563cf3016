package services

import (
	"strings"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

// GradeOutcome is the automatic verdict for one answer. IsCorrect is nil when a human must grade it.
type GradeOutcome struct {
	IsCorrect *bool   `json:"is_correct"`
	Marks     float64 `json:"marks"`
}

// AnswerGrader scores a single raw answer against its question. It holds no state.
type AnswerGrader struct{}

func (AnswerGrader) Grade(question *models.Question, rawAnswer string) GradeOutcome {
	var correct bool

	switch question.Type {
	case models.QuestionMultipleChoice, models.QuestionTrueFalse:
		correct = question.CorrectAnswer != "" && strings.EqualFold(rawAnswer, question.CorrectAnswer)
	case models.QuestionShortAnswer:
		expected := strings.TrimSpace(question.CorrectAnswer)
		correct = expected != "" && strings.EqualFold(strings.TrimSpace(rawAnswer), expected)
	default:
		return GradeOutcome{IsCorrect: nil, Marks: 0}
	}

	outcome := GradeOutcome{IsCorrect: &correct}
	if correct {
		outcome.Marks = question.Marks
	}
	return outcome
}
