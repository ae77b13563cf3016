package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) GetAttempt(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) FindOpenAttempt(ctx context.Context, quizID uint, studentID string) (*models.Attempt, error) {
	return findOpenAttempt(a.db.WithContext(ctx), quizID, studentID)
}

func findOpenAttempt(db *gorm.DB, quizID uint, studentID string) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := db.
		Where("quiz_id = ? AND student_id = ? AND is_completed = ?", quizID, studentID, false).
		Order("attempt_number DESC").
		First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountAttempts(ctx context.Context, quizID uint, studentID string) (int, error) {
	return countAttempts(a.db.WithContext(ctx), quizID, studentID)
}

func countAttempts(db *gorm.DB, quizID uint, studentID string) (int, error) {
	var count int64
	err := db.
		Model(&models.Attempt{}).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Count(&count).Error
	return int(count), err
}

func (a *AttemptPostgreSQL) CreateAttempt(ctx context.Context, attempt *models.Attempt, maxAttempts int) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serializes creators for the same (quiz, student) until commit.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?, hashtext(?))", int32(attempt.QuizID), attempt.StudentID).Error; err != nil {
			return err
		}

		open, err := findOpenAttempt(tx, attempt.QuizID, attempt.StudentID)
		if err != nil {
			return err
		}
		if open != nil {
			return &repositories.OpenAttemptError{AttemptID: open.ID}
		}

		count, err := countAttempts(tx, attempt.QuizID, attempt.StudentID)
		if err != nil {
			return err
		}
		if count >= maxAttempts {
			return repositories.ErrAttemptLimitReached
		}

		attempt.AttemptNumber = count + 1
		return translateError(tx.Omit("Answers").Create(attempt).Error)
	})
}

func (a *AttemptPostgreSQL) UpdateAttempt(ctx context.Context, attempt *models.Attempt) error {
	return translateError(a.db.WithContext(ctx).Omit("Answers").Save(attempt).Error)
}

func (a *AttemptPostgreSQL) CompleteAttempt(ctx context.Context, attempt *models.Attempt) (bool, error) {
	result := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND is_completed = ?", attempt.ID, false).
		Updates(map[string]interface{}{
			"is_completed":       true,
			"submitted_at":       attempt.SubmittedAt,
			"time_spent_minutes": attempt.TimeSpentMinutes,
			"score":              attempt.Score,
			"is_passed":          attempt.IsPassed,
			"forced":             attempt.Forced,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (a *AttemptPostgreSQL) ListOverdue(ctx context.Context, now time.Time) ([]*models.Attempt, error) {
	var attempts []*models.Attempt
	if err := a.db.WithContext(ctx).
		Joins("JOIN quizzes ON quizzes.id = quiz_attempts.quiz_id").
		Where("quiz_attempts.is_completed = ?", false).
		Where("quizzes.time_limit_enforced = ? AND quizzes.duration_minutes > 0", true).
		Where("quiz_attempts.started_at + quizzes.duration_minutes * interval '1 minute' < ?", now).
		Order("quiz_attempts.started_at ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}
