package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// ShuffleSeed is a 64-bit render seed. Postgres has no unsigned bigint, so the
// column holds the same bits as a signed value.
type ShuffleSeed uint64

func (s ShuffleSeed) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *ShuffleSeed) Scan(value interface{}) error {
	switch v := value.(type) {
	case int64:
		*s = ShuffleSeed(v)
	case nil:
		*s = 0
	default:
		return fmt.Errorf("cannot scan %T into ShuffleSeed", value)
	}
	return nil
}

type Attempt struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	QuizID        uint   `json:"quiz_id" gorm:"not null;uniqueIndex:idx_attempt_number,priority:1;index"`
	StudentID     string `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_attempt_number,priority:2;index"`
	AttemptNumber int    `json:"attempt_number" gorm:"not null;uniqueIndex:idx_attempt_number,priority:3"`

	// Timing
	StartedAt        time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt      *time.Time `json:"submitted_at"`
	TimeSpentMinutes int        `json:"time_spent_minutes"`

	// Outcome
	IsCompleted bool     `json:"is_completed" gorm:"not null;default:false;index"`
	Score       *float64 `json:"score"`
	IsPassed    *bool    `json:"is_passed"`
	Forced      bool     `json:"forced" gorm:"not null;default:false"`

	// Seed used to render this attempt's question order, kept for audits.
	ShuffleSeed ShuffleSeed `json:"shuffle_seed" gorm:"type:bigint;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (Attempt) TableName() string {
	return "quiz_attempts"
}

// Deadline returns the moment the attempt's time limit runs out, or false when no limit applies.
func (a *Attempt) Deadline(quiz *Quiz) (time.Time, bool) {
	if quiz == nil || !quiz.TimeLimitEnforced || quiz.DurationMinutes <= 0 {
		return time.Time{}, false
	}
	return a.StartedAt.Add(quiz.Duration()), true
}

type Answer struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	AttemptID  uint   `json:"attempt_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question,priority:1"`
	QuestionID uint   `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question,priority:2"`
	Answer     string `json:"answer" gorm:"type:text"`

	// Grading
	IsCorrect *bool      `json:"is_correct"` // null for manually graded types
	Marks     float64    `json:"marks" gorm:"not null;default:0"`
	GradedBy  *string    `json:"graded_by" gorm:"size:255"`
	GradedAt  *time.Time `json:"graded_at"`
	Feedback  string     `json:"feedback,omitempty" gorm:"type:text"`

	AnsweredAt time.Time `json:"answered_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Answer) TableName() string {
	return "quiz_answers"
}
