package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

type GradePostgreSQL struct {
	db *gorm.DB
}

func NewGradePostgreSQL(db *gorm.DB) repositories.GradeRepository {
	return &GradePostgreSQL{db: db}
}

func (g *GradePostgreSQL) CreateGrade(ctx context.Context, grade *models.Grade) error {
	return translateError(g.db.WithContext(ctx).Create(grade).Error)
}

func (g *GradePostgreSQL) GetLatestGrade(ctx context.Context, attemptID uint) (*models.Grade, error) {
	var grade models.Grade
	if err := g.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("version DESC").
		First(&grade).Error; err != nil {
		return nil, translateError(err)
	}
	return &grade, nil
}

func (g *GradePostgreSQL) ListGradesByQuiz(ctx context.Context, quizID uint) ([]*models.Grade, error) {
	var grades []*models.Grade
	if err := g.db.WithContext(ctx).
		Where("quiz_id = ? AND superseded = ?", quizID, false).
		Order("student_id ASC, attempt_id ASC").
		Find(&grades).Error; err != nil {
		return nil, err
	}
	return grades, nil
}

func (g *GradePostgreSQL) SupersedeGrades(ctx context.Context, attemptID uint) error {
	return g.db.WithContext(ctx).
		Model(&models.Grade{}).
		Where("attempt_id = ? AND superseded = ?", attemptID, false).
		Update("superseded", true).Error
}

func (g *GradePostgreSQL) PublishGrades(ctx context.Context, quizID uint) (int64, error) {
	result := g.db.WithContext(ctx).
		Model(&models.Grade{}).
		Where("quiz_id = ? AND superseded = ? AND is_published = ?", quizID, false, false).
		Update("is_published", true)
	return result.RowsAffected, result.Error
}
