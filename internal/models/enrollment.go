package models

import "time"

type Enrollment struct {
	SubjectID string    `json:"subject_id" gorm:"primaryKey;size:255"`
	StudentID string    `json:"student_id" gorm:"primaryKey;size:255"`
	CreatedAt time.Time `json:"created_at"`
}

func (Enrollment) TableName() string {
	return "subject_enrollments"
}

type ReminderKind string

const (
	ReminderUpcoming     ReminderKind = "upcoming"
	ReminderStartingSoon ReminderKind = "starting_soon"
)

// ReminderLog records that a reminder of a given kind was emitted for a quiz
// scheduled to start at StartsAt (Unix seconds).
type ReminderLog struct {
	QuizID    uint         `json:"quiz_id" gorm:"primaryKey;autoIncrement:false"`
	StartsAt  int64        `json:"starts_at" gorm:"primaryKey;autoIncrement:false"`
	Kind      ReminderKind `json:"kind" gorm:"primaryKey;size:32"`
	SentAt    time.Time    `json:"sent_at"`
	Recipient int          `json:"recipients"`
}

func (ReminderLog) TableName() string {
	return "quiz_reminder_log"
}
