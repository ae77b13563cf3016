package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-engine/internal/events"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories/memory"
	"github.com/SAP-F-2025/quiz-engine/internal/validator"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	repo      *memory.Store
	directory *memory.Directory
	clock     *ManualClock
	publisher *events.MockEventPublisher
	notifier  NotificationEventService
	attempts  AttemptService
	quizzes   QuizService
	grading   GradingService
	reports   ReportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := discardLogger()
	env := &testEnv{
		repo:      memory.NewRepository(),
		directory: memory.NewDirectory(),
		clock:     NewManualClock(baseTime),
		publisher: events.NewMockEventPublisher(logger),
	}
	v := validator.New()
	env.notifier = NewNotificationEventService(env.publisher, logger)
	env.attempts = NewAttemptService(env.repo, env.clock, env.notifier, nil, logger, AttemptConfig{
		CollaboratorTimeout: 5 * time.Second,
		GradeScheme:         models.GradingPassFail,
	})
	env.quizzes = NewQuizService(env.repo, env.clock, env.notifier, v, logger)
	env.grading = NewGradingService(env.repo, env.clock, env.notifier, v, models.GradingPassFail, logger)
	env.reports = NewReportService(env.repo, logger)
	return env
}

// seedQuiz stores quiz and questions directly, bypassing publish validation
func (e *testEnv) seedQuiz(t *testing.T, quiz *models.Quiz, questions ...*models.Question) (*models.Quiz, []*models.Question) {
	t.Helper()

	ctx := context.Background()
	if quiz.SubjectID == "" {
		quiz.SubjectID = "math-101"
	}
	if quiz.InstructorID == "" {
		quiz.InstructorID = "teacher-1"
	}
	if quiz.MaxAttempts == 0 {
		quiz.MaxAttempts = 1
	}
	require.NoError(t, e.repo.Quiz().SaveQuiz(ctx, quiz))
	require.NoError(t, e.repo.Quiz().ReplaceQuestions(ctx, quiz.ID, questions))
	return quiz, questions
}

// scoringQuiz is the two-question example: MC worth 5 keyed "B", short answer worth 5 keyed "paris"
func (e *testEnv) scoringQuiz(t *testing.T, mutate func(*models.Quiz)) (*models.Quiz, []*models.Question) {
	t.Helper()

	quiz := &models.Quiz{
		Title:        "Geography",
		TotalMarks:   10,
		PassingMarks: floatPtr(5),
		MaxAttempts:  1,
		Status:       models.QuizActive,
	}
	if mutate != nil {
		mutate(quiz)
	}
	return e.seedQuiz(t, quiz,
		&models.Question{Type: models.QuestionMultipleChoice, Text: "Pick B", Options: []string{"A", "B", "C"}, CorrectAnswer: "B", Marks: 5, Order: 1},
		&models.Question{Type: models.QuestionShortAnswer, Text: "Capital of France", CorrectAnswer: "paris", Marks: 5, Order: 2},
	)
}

func student(id string) CallerContext {
	return CallerContext{StudentID: id, Role: models.RoleStudent}
}

func instructor(id string) CallerContext {
	return CallerContext{StudentID: id, Role: models.RoleInstructor}
}

func (e *testEnv) gradeCount(t *testing.T, quizID uint) int {
	t.Helper()
	grades, err := e.repo.Grade().ListGradesByQuiz(context.Background(), quizID)
	require.NoError(t, err)
	return len(grades)
}
