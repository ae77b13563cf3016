package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

// ReminderPostgreSQL keeps the reminder ledger in the quiz_reminder_log table
type ReminderPostgreSQL struct {
	db *gorm.DB
}

func NewReminderPostgreSQL(db *gorm.DB) repositories.ReminderLedger {
	return &ReminderPostgreSQL{db: db}
}

func (r *ReminderPostgreSQL) MarkSent(ctx context.Context, quizID uint, startsAt time.Time, kind models.ReminderKind, recipients int) (bool, error) {
	entry := models.ReminderLog{
		QuizID:    quizID,
		StartsAt:  startsAt.Unix(),
		Kind:      kind,
		SentAt:    time.Now().UTC(),
		Recipient: recipients,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
