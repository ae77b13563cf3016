package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

func publishableQuiz() (*models.Quiz, []*models.Question) {
	quiz := &models.Quiz{
		SubjectID:    "geo-101",
		InstructorID: "inst-1",
		Title:        "Capitals",
		TotalMarks:   10,
		MaxAttempts:  1,
	}
	questions := []*models.Question{
		{Type: models.QuestionMultipleChoice, Text: "Pick b", Options: []string{"a", "b", "c"}, CorrectAnswer: "b", Marks: 5, Order: 1},
		{Type: models.QuestionShortAnswer, Text: "Capital of France?", CorrectAnswer: "Paris", Marks: 5, Order: 2},
	}
	return quiz, questions
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	errs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	var fields []string
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	return fields
}

func TestValidateForPublish_Valid(t *testing.T) {
	qv := NewQuestionValidator(New())
	quiz, questions := publishableQuiz()
	assert.NoError(t, qv.ValidateForPublish(quiz, questions))
}

func TestValidateForPublish_MarksMismatch(t *testing.T) {
	qv := NewQuestionValidator(New())
	quiz, questions := publishableQuiz()
	quiz.TotalMarks = 12

	err := qv.ValidateForPublish(quiz, questions)
	require.Error(t, err)
	assert.Contains(t, fieldsOf(t, err), "total_marks")
}

func TestValidateForPublish_CollectsAll(t *testing.T) {
	qv := NewQuestionValidator(New())
	quiz, questions := publishableQuiz()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	quiz.StartTime, quiz.EndTime = &start, &end
	quiz.TimeLimitEnforced = true
	questions[0].CorrectAnswer = "z"

	err := qv.ValidateForPublish(quiz, questions)
	require.Error(t, err)
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "end_time")
	assert.Contains(t, fields, "duration_minutes")
	assert.Contains(t, fields, "questions[0].correct_answer")
}

func TestValidateForPublish_Empty(t *testing.T) {
	qv := NewQuestionValidator(New())
	quiz, _ := publishableQuiz()

	err := qv.ValidateForPublish(quiz, nil)
	require.Error(t, err)
	assert.Contains(t, fieldsOf(t, err), "questions")
}

func TestValidateQuestion_PerType(t *testing.T) {
	qv := NewQuestionValidator(New())

	tests := []struct {
		name     string
		question models.Question
		wantErr  bool
	}{
		{"true false ok", models.Question{Type: models.QuestionTrueFalse, Text: "Sky is blue", CorrectAnswer: "True", Marks: 1}, false},
		{"true false bad key", models.Question{Type: models.QuestionTrueFalse, Text: "Sky is blue", CorrectAnswer: "yes", Marks: 1}, true},
		{"mc single option", models.Question{Type: models.QuestionMultipleChoice, Text: "?", Options: []string{"a"}, CorrectAnswer: "a", Marks: 1}, true},
		{"mc duplicate options", models.Question{Type: models.QuestionMultipleChoice, Text: "?", Options: []string{"a", "A"}, CorrectAnswer: "a", Marks: 1}, true},
		{"short answer missing key", models.Question{Type: models.QuestionShortAnswer, Text: "?", Marks: 1}, true},
		{"essay without key", models.Question{Type: models.QuestionEssay, Text: "Discuss", Marks: 4}, false},
		{"zero marks", models.Question{Type: models.QuestionCode, Text: "Write", Marks: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := qv.ValidateQuestion(&tt.question)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
