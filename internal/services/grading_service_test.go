package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-engine/internal/events"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

// essayAttempt closes an attempt with one correct true/false answer and one essay awaiting review
func essayAttempt(t *testing.T, env *testEnv) (*models.Quiz, []*models.Question, *AttemptResult) {
	t.Helper()
	ctx := context.Background()

	quiz, questions := env.seedQuiz(t, &models.Quiz{
		Title:        "Essay",
		TotalMarks:   15,
		PassingMarks: floatPtr(10),
		Status:       models.QuizActive,
	},
		&models.Question{Type: models.QuestionTrueFalse, Text: "Sky is blue", CorrectAnswer: "true", Marks: 5, Order: 1},
		&models.Question{Type: models.QuestionEssay, Text: "Discuss", Marks: 10, Order: 2},
	)

	started, err := env.attempts.StartAttempt(ctx, student("alice"), quiz.ID)
	require.NoError(t, err)
	_, err = env.attempts.SubmitAnswers(ctx, student("alice"), started.Attempt.ID, []AnswerInput{
		{QuestionID: questions[0].ID, Answer: "true"},
		{QuestionID: questions[1].ID, Answer: "Rayleigh scattering"},
	})
	require.NoError(t, err)

	closed, err := env.attempts.CloseAttempt(ctx, student("alice"), started.Attempt.ID)
	require.NoError(t, err)
	require.False(t, closed.Result.IsPassed)
	return quiz, questions, closed
}

func answerFor(t *testing.T, env *testEnv, attemptID, questionID uint) *models.Answer {
	t.Helper()
	answers, err := env.repo.Answer().ListAnswers(context.Background(), attemptID)
	require.NoError(t, err)
	for _, a := range answers {
		if a.QuestionID == questionID {
			return a
		}
	}
	t.Fatalf("no answer for question %d", questionID)
	return nil
}

func TestOverrideAnswer_AppendsGradeVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, questions, closed := essayAttempt(t, env)
	essay := answerFor(t, env, closed.Attempt.ID, questions[1].ID)

	result, err := env.grading.OverrideAnswer(ctx, instructor("teacher-1"), essay.ID, &OverrideRequest{Marks: 8, Feedback: "good"})
	require.NoError(t, err)

	assert.Equal(t, 13.0, result.Result.Score)
	assert.True(t, result.Result.IsPassed)
	assert.Zero(t, result.Result.PendingReview)
	assert.Equal(t, 2, result.Grade.Version)
	require.NotNil(t, result.Grade.GradedBy)
	assert.Equal(t, "teacher-1", *result.Grade.GradedBy)
	require.NotNil(t, result.Answer.IsCorrect)
	assert.False(t, *result.Answer.IsCorrect)
	assert.Equal(t, "good", result.Answer.Feedback)

	// Only the current version is listed
	grades, err := env.repo.Grade().ListGradesByQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, 2, grades[0].Version)

	attempt, err := env.repo.Attempt().GetAttempt(ctx, closed.Attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 13.0, *attempt.Score)
	assert.True(t, *attempt.IsPassed)

	// Closing again reports the latest version
	again, err := env.attempts.CloseAttempt(ctx, student("alice"), closed.Attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 13.0, again.Result.Score)
	assert.Len(t, env.publisher.EventsOfType(events.EventAttemptGraded), 1)
}

func TestOverrideAnswer_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, questions := env.scoringQuiz(t, nil)

	started, err := env.attempts.StartAttempt(ctx, student("alice"), quiz.ID)
	require.NoError(t, err)
	_, err = env.attempts.SubmitAnswer(ctx, student("alice"), started.Attempt.ID, questions[0].ID, "A")
	require.NoError(t, err)
	answer := answerFor(t, env, started.Attempt.ID, questions[0].ID)

	_, err = env.grading.OverrideAnswer(ctx, student("alice"), answer.ID, &OverrideRequest{Marks: 5})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.grading.OverrideAnswer(ctx, instructor("teacher-1"), answer.ID, &OverrideRequest{Marks: 5})
	assert.ErrorIs(t, err, ErrAttemptNotClosed)

	_, err = env.attempts.CloseAttempt(ctx, student("alice"), started.Attempt.ID)
	require.NoError(t, err)

	_, err = env.grading.OverrideAnswer(ctx, instructor("teacher-1"), answer.ID, &OverrideRequest{Marks: 6})
	assert.True(t, IsValidation(err))

	_, err = env.grading.OverrideAnswer(ctx, instructor("teacher-1"), answer.ID, &OverrideRequest{Marks: -1})
	assert.True(t, IsValidation(err))

	_, err = env.grading.OverrideAnswer(ctx, instructor("teacher-1"), 9999, &OverrideRequest{Marks: 1})
	assert.ErrorIs(t, err, ErrAnswerNotFound)
}

func TestRegradeAttempt_RescoresAutoGradedAndKeepsOverrides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, questions, closed := essayAttempt(t, env)
	essay := answerFor(t, env, closed.Attempt.ID, questions[1].ID)

	_, err := env.grading.OverrideAnswer(ctx, instructor("teacher-1"), essay.ID, &OverrideRequest{Marks: 10})
	require.NoError(t, err)

	// Stale auto-grade on the true/false answer, as left by an earlier answer key
	tf := answerFor(t, env, closed.Attempt.ID, questions[0].ID)
	wrong := false
	tf.IsCorrect = &wrong
	tf.Marks = 0
	require.NoError(t, env.repo.Answer().UpdateAnswer(ctx, tf))

	result, err := env.grading.RegradeAttempt(ctx, instructor("teacher-1"), closed.Attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 15.0, result.Result.Score)
	assert.Equal(t, 3, result.Grade.Version)

	tf = answerFor(t, env, closed.Attempt.ID, questions[0].ID)
	assert.Equal(t, 5.0, tf.Marks)
	essay = answerFor(t, env, closed.Attempt.ID, questions[1].ID)
	assert.Equal(t, 10.0, essay.Marks)
}

func TestOverrideAnswer_KeepsPublishedGradeVisible(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, questions, closed := essayAttempt(t, env)

	count, err := env.grading.PublishGrades(ctx, instructor("teacher-1"), quiz.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	essay := answerFor(t, env, closed.Attempt.ID, questions[1].ID)
	result, err := env.grading.OverrideAnswer(ctx, instructor("teacher-1"), essay.ID, &OverrideRequest{Marks: 9})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Grade.Version)
	assert.True(t, result.Grade.IsPublished)

	regraded, err := env.grading.RegradeAttempt(ctx, instructor("teacher-1"), closed.Attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, regraded.Grade.Version)
	assert.True(t, regraded.Grade.IsPublished)

	grades, err := env.repo.Grade().ListGradesByQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, 3, grades[0].Version)
	assert.True(t, grades[0].IsPublished)
	assert.Equal(t, 14.0, grades[0].Marks)
}

func TestRegradeAttempt_OpenAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, _ := env.scoringQuiz(t, nil)

	started, err := env.attempts.StartAttempt(ctx, student("alice"), quiz.ID)
	require.NoError(t, err)

	_, err = env.grading.RegradeAttempt(ctx, instructor("teacher-1"), started.Attempt.ID)
	assert.ErrorIs(t, err, ErrAttemptNotClosed)

	_, err = env.grading.RegradeAttempt(ctx, student("alice"), started.Attempt.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPublishAndGetGrades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, questions := env.scoringQuiz(t, nil)

	for _, tc := range []struct {
		id     string
		answer string
	}{{"alice", "B"}, {"bob", "A"}} {
		started, err := env.attempts.StartAttempt(ctx, student(tc.id), quiz.ID)
		require.NoError(t, err)
		_, err = env.attempts.SubmitAnswer(ctx, student(tc.id), started.Attempt.ID, questions[0].ID, tc.answer)
		require.NoError(t, err)
		_, err = env.attempts.CloseAttempt(ctx, student(tc.id), started.Attempt.ID)
		require.NoError(t, err)
	}

	report, err := env.grading.GetGrades(ctx, instructor("teacher-1"), quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stats.GradedAttempts)
	assert.Equal(t, 1, report.Stats.PassedCount)
	assert.Equal(t, 2.5, report.Stats.AverageMarks)
	assert.Equal(t, 50.0, report.Stats.PassRate)

	count, err := env.grading.PublishGrades(ctx, instructor("teacher-1"), quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Len(t, env.publisher.EventsOfType(events.EventGradesPublished), 1)

	_, err = env.grading.GetGrades(ctx, student("alice"), quiz.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.grading.PublishGrades(ctx, instructor("teacher-1"), 9999)
	assert.ErrorIs(t, err, ErrQuizNotFound)
}
