package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

// translateError maps gorm errors onto the repository error vocabulary.
// Duplicate keys are only reported as gorm.ErrDuplicatedKey when the connection
// was opened with TranslateError enabled (see pkg.NewGorm).
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repositories.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repositories.ErrDuplicate
	default:
		return err
	}
}

// AutoMigrate creates or updates the engine's tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Quiz{},
		&models.Question{},
		&models.Attempt{},
		&models.Answer{},
		&models.Grade{},
		&models.Enrollment{},
		&models.ReminderLog{},
	)
}
