package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-engine/internal/cache"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

type QuizPostgreSQL struct {
	db    *gorm.DB
	cache *cache.CacheManager
}

func NewQuizPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.QuizRepository {
	return &QuizPostgreSQL{
		db:    db,
		cache: cacheManager,
	}
}

func quizKey(id uint) string {
	return fmt.Sprintf("id:%d", id)
}

func (q *QuizPostgreSQL) GetQuiz(ctx context.Context, id uint) (*models.Quiz, error) {
	var quiz models.Quiz
	err := q.cache.Quiz.CacheOrExecute(ctx, quizKey(id), &quiz, cache.QuizCacheConfig.TTL, func() (interface{}, error) {
		var row models.Quiz
		if err := q.db.WithContext(ctx).First(&row, id).Error; err != nil {
			return nil, translateError(err)
		}
		return &row, nil
	})
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (q *QuizPostgreSQL) GetQuestions(ctx context.Context, quizID uint) ([]*models.Question, error) {
	var questions []*models.Question
	err := q.cache.Question.CacheOrExecute(ctx, quizKey(quizID), &questions, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var rows []*models.Question
		if err := q.db.WithContext(ctx).
			Where("quiz_id = ?", quizID).
			Order("sort_order ASC, id ASC").
			Find(&rows).Error; err != nil {
			return nil, err
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (q *QuizPostgreSQL) UpdateQuizStatus(ctx context.Context, id uint, status models.QuizStatus) error {
	result := q.db.WithContext(ctx).
		Model(&models.Quiz{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}

	q.cache.InvalidateQuiz(ctx, id)
	return nil
}

func (q *QuizPostgreSQL) SaveQuiz(ctx context.Context, quiz *models.Quiz) error {
	// Questions are managed through ReplaceQuestions
	err := q.db.WithContext(ctx).Omit("Questions").Save(quiz).Error
	if err != nil {
		return translateError(err)
	}

	q.cache.InvalidateQuiz(ctx, quiz.ID)
	return nil
}

func (q *QuizPostgreSQL) ReplaceQuestions(ctx context.Context, quizID uint, questions []*models.Question) error {
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", quizID).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		for _, question := range questions {
			question.QuizID = quizID
			question.ID = 0
		}
		return tx.Create(&questions).Error
	})
	if err != nil {
		return translateError(err)
	}

	q.cache.InvalidateQuiz(ctx, quizID)
	return nil
}

func (q *QuizPostgreSQL) ListSchedulable(ctx context.Context, until time.Time) ([]*models.Quiz, error) {
	var quizzes []*models.Quiz
	if err := q.db.WithContext(ctx).
		Where("status IN ?", []models.QuizStatus{models.QuizScheduled, models.QuizActive}).
		Where("(start_time IS NOT NULL AND start_time <= ?) OR (end_time IS NOT NULL AND end_time <= ?)", until, until).
		Order("start_time ASC").
		Find(&quizzes).Error; err != nil {
		return nil, err
	}
	return quizzes, nil
}
