package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuizStatus string

const (
	QuizDraft     QuizStatus = "DRAFT"
	QuizScheduled QuizStatus = "SCHEDULED"
	QuizActive    QuizStatus = "ACTIVE"
	QuizCompleted QuizStatus = "COMPLETED"
)

type Quiz struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	SubjectID    string `json:"subject_id" gorm:"not null;index;size:255" validate:"required"`
	InstructorID string `json:"instructor_id" gorm:"not null;index;size:255" validate:"required"`
	Title        string `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`

	// Scoring
	TotalMarks   float64  `json:"total_marks" gorm:"not null"`
	PassingMarks *float64 `json:"passing_marks" validate:"omitempty,min=0"`
	MaxAttempts  int      `json:"max_attempts" gorm:"not null;default:1" validate:"min=1"`

	// Rendering
	ShuffleQuestions bool `json:"shuffle_questions" gorm:"not null;default:false"`
	ShuffleOptions   bool `json:"shuffle_options" gorm:"not null;default:false"`

	// Timing
	TimeLimitEnforced bool       `json:"time_limit_enforced" gorm:"not null;default:false"`
	DurationMinutes   int        `json:"duration_minutes" gorm:"not null;default:0" validate:"min=0"`
	ScheduledAt       *time.Time `json:"scheduled_at"`
	StartTime         *time.Time `json:"start_time" gorm:"index"`
	EndTime           *time.Time `json:"end_time" gorm:"index"`

	Status QuizStatus `json:"status" gorm:"not null;default:DRAFT;index" validate:"omitempty,quiz_status"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:QuizID"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// Duration returns the configured time limit.
func (q *Quiz) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionShortAnswer    QuestionType = "SHORT_ANSWER"
	QuestionEssay          QuestionType = "ESSAY"
	QuestionCode           QuestionType = "CODE"
)

// IsAutoGradable reports whether answers of this type can be scored without a human.
func (t QuestionType) IsAutoGradable() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer:
		return true
	default:
		return false
	}
}

type Question struct {
	ID            uint                        `json:"id" gorm:"primaryKey"`
	QuizID        uint                        `json:"quiz_id" gorm:"not null;index"`
	Type          QuestionType                `json:"type" gorm:"not null;size:32" validate:"required,question_type"`
	Text          string                      `json:"text" gorm:"type:text" validate:"required"`
	Options       datatypes.JSONSlice[string] `json:"options" gorm:"type:jsonb"`
	CorrectAnswer string                      `json:"correct_answer,omitempty" gorm:"type:text"`
	Marks         float64                     `json:"marks" gorm:"not null" validate:"gt=0"`
	Order         int                         `json:"order" gorm:"column:sort_order;not null;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "quiz_questions"
}
