package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

// QuizRepository reads quizzes and their question bank
type QuizRepository interface {
	GetQuiz(ctx context.Context, id uint) (*models.Quiz, error)
	GetQuestions(ctx context.Context, quizID uint) ([]*models.Question, error) // ordered by Order
	UpdateQuizStatus(ctx context.Context, id uint, status models.QuizStatus) error

	// Authoring support
	SaveQuiz(ctx context.Context, quiz *models.Quiz) error // create when ID is zero, update otherwise
	ReplaceQuestions(ctx context.Context, quizID uint, questions []*models.Question) error

	// ListSchedulable returns SCHEDULED and ACTIVE quizzes that have a start or end time
	// no later than until.
	ListSchedulable(ctx context.Context, until time.Time) ([]*models.Quiz, error)
}

// EnrollmentDirectory lists students enrolled in a subject
type EnrollmentDirectory interface {
	ListEnrolledStudents(ctx context.Context, subjectID string) ([]string, error)
}

// ReminderLedger records emitted reminders so a scan can be re-run without double-notifying
type ReminderLedger interface {
	// MarkSent records (quizID, startsAt, kind) and reports whether this call was the first to do so.
	// A quiz rescheduled to a new start time is reminded again.
	MarkSent(ctx context.Context, quizID uint, startsAt time.Time, kind models.ReminderKind, recipients int) (bool, error)
}
