package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

func (a *AnswerPostgreSQL) UpsertAnswer(ctx context.Context, answer *models.Answer) error {
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"answer", "is_correct", "marks", "graded_by", "graded_at", "answered_at", "updated_at",
		}),
	}).Create(answer).Error
}

func (a *AnswerPostgreSQL) ListAnswers(ctx context.Context, attemptID uint) ([]*models.Answer, error) {
	var answers []*models.Answer
	if err := a.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}

func (a *AnswerPostgreSQL) GetAnswer(ctx context.Context, id uint) (*models.Answer, error) {
	var answer models.Answer
	if err := a.db.WithContext(ctx).First(&answer, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &answer, nil
}

func (a *AnswerPostgreSQL) UpdateAnswer(ctx context.Context, answer *models.Answer) error {
	return translateError(a.db.WithContext(ctx).Save(answer).Error)
}
