package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

type EnrollmentPostgreSQL struct {
	db *gorm.DB
}

func NewEnrollmentPostgreSQL(db *gorm.DB) repositories.EnrollmentDirectory {
	return &EnrollmentPostgreSQL{db: db}
}

func (e *EnrollmentPostgreSQL) ListEnrolledStudents(ctx context.Context, subjectID string) ([]string, error) {
	var students []string
	if err := e.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("subject_id = ?", subjectID).
		Order("student_id ASC").
		Pluck("student_id", &students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

