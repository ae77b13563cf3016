package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-engine/internal/events"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

func createRequest() *CreateQuizRequest {
	return &CreateQuizRequest{
		SubjectID:    "math-101",
		Title:        "Fractions",
		TotalMarks:   10,
		PassingMarks: floatPtr(6),
		MaxAttempts:  2,
		Questions: []QuestionInput{
			{Type: models.QuestionMultipleChoice, Text: "1/2 + 1/4?", Options: []string{"3/4", "2/6"}, CorrectAnswer: "3/4", Marks: 4},
			{Type: models.QuestionTrueFalse, Text: "1/3 > 1/4", CorrectAnswer: "true", Marks: 3},
			{Type: models.QuestionEssay, Text: "Explain common denominators", Marks: 3},
		},
	}
}

func TestCreateQuiz(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	detail, err := env.quizzes.CreateQuiz(ctx, instructor("teacher-1"), createRequest())
	require.NoError(t, err)
	assert.NotZero(t, detail.Quiz.ID)
	assert.Equal(t, models.QuizDraft, detail.Quiz.Status)
	assert.Equal(t, "teacher-1", detail.Quiz.InstructorID)
	require.Len(t, detail.Questions, 3)
	assert.Equal(t, 1, detail.Questions[0].Order)
	assert.Equal(t, 3, detail.Questions[2].Order)

	stored, err := env.repo.Quiz().GetQuestions(ctx, detail.Quiz.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestCreateQuiz_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.quizzes.CreateQuiz(ctx, student("alice"), createRequest())
	assert.ErrorIs(t, err, ErrForbidden)

	req := createRequest()
	req.Title = ""
	_, err = env.quizzes.CreateQuiz(ctx, instructor("teacher-1"), req)
	assert.True(t, IsValidation(err))

	req = createRequest()
	req.Questions[0].CorrectAnswer = "1/8"
	_, err = env.quizzes.CreateQuiz(ctx, instructor("teacher-1"), req)
	assert.True(t, IsValidation(err))
}

func TestGetQuiz_Visibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	detail, err := env.quizzes.CreateQuiz(ctx, instructor("teacher-1"), createRequest())
	require.NoError(t, err)

	_, err = env.quizzes.GetQuiz(ctx, student("alice"), detail.Quiz.ID)
	assert.ErrorIs(t, err, ErrQuizNotFound)

	view, err := env.quizzes.GetQuiz(ctx, instructor("teacher-1"), detail.Quiz.ID)
	require.NoError(t, err)
	assert.Len(t, view.Questions, 3)
	assert.False(t, view.CanStart)

	_, err = env.quizzes.Publish(ctx, instructor("teacher-1"), detail.Quiz.ID, &PublishRequest{Activate: true})
	require.NoError(t, err)

	view, err = env.quizzes.GetQuiz(ctx, student("alice"), detail.Quiz.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Questions)
	assert.True(t, view.CanStart)
}

func TestPublish_Scheduled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	detail, err := env.quizzes.CreateQuiz(ctx, instructor("teacher-1"), createRequest())
	require.NoError(t, err)

	start := baseTime.Add(24 * time.Hour)
	end := start.Add(time.Hour)
	quiz, err := env.quizzes.Publish(ctx, instructor("teacher-1"), detail.Quiz.ID, &PublishRequest{StartTime: &start, EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, models.QuizScheduled, quiz.Status)
	assert.Len(t, env.publisher.EventsOfType(events.EventQuizStatusChanged), 1)

	_, err = env.quizzes.Publish(ctx, instructor("teacher-1"), detail.Quiz.ID, &PublishRequest{StartTime: &start})
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestPublish_ValidationCollectsFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := createRequest()
	req.TotalMarks = 12
	detail, err := env.quizzes.CreateQuiz(ctx, instructor("teacher-1"), req)
	require.NoError(t, err)

	start := baseTime.Add(time.Hour)
	end := start.Add(-time.Minute)
	_, err = env.quizzes.Publish(ctx, instructor("teacher-1"), detail.Quiz.ID, &PublishRequest{StartTime: &start, EndTime: &end})
	require.Error(t, err)

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	assert.Contains(t, fields, "total_marks")
	assert.Contains(t, fields, "end_time")

	_, err = env.quizzes.Publish(ctx, instructor("teacher-1"), detail.Quiz.ID, &PublishRequest{})
	assert.True(t, IsValidation(err))
}

func TestPublish_OnlyOwnerOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	detail, err := env.quizzes.CreateQuiz(ctx, instructor("teacher-1"), createRequest())
	require.NoError(t, err)

	_, err = env.quizzes.Publish(ctx, instructor("teacher-2"), detail.Quiz.ID, &PublishRequest{Activate: true})
	assert.ErrorIs(t, err, ErrForbidden)

	admin := CallerContext{StudentID: "root", Role: models.RoleAdmin}
	quiz, err := env.quizzes.Publish(ctx, admin, detail.Quiz.ID, &PublishRequest{Activate: true})
	require.NoError(t, err)
	assert.Equal(t, models.QuizActive, quiz.Status)
}

func TestQuizTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	teacher := instructor("teacher-1")

	detail, err := env.quizzes.CreateQuiz(ctx, teacher, createRequest())
	require.NoError(t, err)
	id := detail.Quiz.ID

	_, err = env.quizzes.Complete(ctx, teacher, id)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	quiz, err := env.quizzes.Activate(ctx, teacher, id)
	require.NoError(t, err)
	assert.Equal(t, models.QuizActive, quiz.Status)

	quiz, err = env.quizzes.Complete(ctx, teacher, id)
	require.NoError(t, err)
	assert.Equal(t, models.QuizCompleted, quiz.Status)

	_, err = env.quizzes.Activate(ctx, teacher, id)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = env.attempts.StartAttempt(ctx, student("alice"), id)
	assert.ErrorIs(t, err, ErrWindowClosed)
}

func TestActivate_ManualOverrideBeforeStart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	teacher := instructor("teacher-1")

	detail, err := env.quizzes.CreateQuiz(ctx, teacher, createRequest())
	require.NoError(t, err)

	start := baseTime.Add(2 * time.Hour)
	_, err = env.quizzes.Publish(ctx, teacher, detail.Quiz.ID, &PublishRequest{StartTime: &start})
	require.NoError(t, err)

	_, err = env.attempts.StartAttempt(ctx, student("alice"), detail.Quiz.ID)
	assert.ErrorIs(t, err, ErrWindowClosed)

	_, err = env.quizzes.Activate(ctx, teacher, detail.Quiz.ID)
	require.NoError(t, err)

	// Start bounds still apply to an ACTIVE quiz
	_, err = env.attempts.StartAttempt(ctx, student("alice"), detail.Quiz.ID)
	assert.ErrorIs(t, err, ErrWindowClosed)

	env.clock.Set(start)
	_, err = env.attempts.StartAttempt(ctx, student("alice"), detail.Quiz.ID)
	assert.NoError(t, err)
}
