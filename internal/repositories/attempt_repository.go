package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

// AttemptRepository interface for quiz attempt operations
type AttemptRepository interface {
	GetAttempt(ctx context.Context, id uint) (*models.Attempt, error)
	FindOpenAttempt(ctx context.Context, quizID uint, studentID string) (*models.Attempt, error) // nil, nil when none
	CountAttempts(ctx context.Context, quizID uint, studentID string) (int, error)

	// CreateAttempt atomically checks that no open attempt exists and that fewer than
	// maxAttempts exist, then inserts the attempt with AttemptNumber = count + 1.
	// Returns *OpenAttemptError or ErrAttemptLimitReached when a precondition fails.
	CreateAttempt(ctx context.Context, attempt *models.Attempt, maxAttempts int) error
	UpdateAttempt(ctx context.Context, attempt *models.Attempt) error

	// CompleteAttempt persists the closing fields only if the attempt is still open.
	// Returns false when another caller closed it first.
	CompleteAttempt(ctx context.Context, attempt *models.Attempt) (bool, error)

	// ListOverdue returns open attempts whose enforced time limit ended before now
	ListOverdue(ctx context.Context, now time.Time) ([]*models.Attempt, error)
}

// AnswerRepository interface for answer operations
type AnswerRepository interface {
	// UpsertAnswer inserts or replaces the answer for (AttemptID, QuestionID)
	UpsertAnswer(ctx context.Context, answer *models.Answer) error
	ListAnswers(ctx context.Context, attemptID uint) ([]*models.Answer, error)
	GetAnswer(ctx context.Context, id uint) (*models.Answer, error)
	UpdateAnswer(ctx context.Context, answer *models.Answer) error
}

// GradeRepository interface for grade records
type GradeRepository interface {
	// CreateGrade returns ErrDuplicate when (AttemptID, Version) already exists
	CreateGrade(ctx context.Context, grade *models.Grade) error
	GetLatestGrade(ctx context.Context, attemptID uint) (*models.Grade, error)
	ListGradesByQuiz(ctx context.Context, quizID uint) ([]*models.Grade, error) // current versions only
	SupersedeGrades(ctx context.Context, attemptID uint) error
	PublishGrades(ctx context.Context, quizID uint) (int64, error)
}
