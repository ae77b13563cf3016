package models

import (
	"time"
)

type GradingSchemeType string

const (
	GradingPassFail GradingSchemeType = "pass_fail"
	GradingLetter   GradingSchemeType = "letter"
)

const (
	GradePass = "PASS"
	GradeFail = "FAIL"
)

type Grade struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	AttemptID uint   `json:"attempt_id" gorm:"not null;uniqueIndex:idx_grade_attempt_version,priority:1"`
	QuizID    uint   `json:"quiz_id" gorm:"not null;index"`
	StudentID string `json:"student_id" gorm:"not null;size:255;index"`

	Marks      float64 `json:"marks"`
	MaxMarks   float64 `json:"max_marks"`
	Percentage float64 `json:"percentage"`
	Grade      string  `json:"grade" gorm:"size:16"`
	IsPassed   bool    `json:"is_passed"`

	IsPublished bool `json:"is_published" gorm:"not null;default:false"`

	// Version starts at 1 when the attempt closes; each regrade appends a new version
	// and marks the earlier ones superseded.
	Version    int     `json:"version" gorm:"not null;default:1;uniqueIndex:idx_grade_attempt_version,priority:2"`
	Superseded bool    `json:"superseded" gorm:"not null;default:false"`
	GradedBy   *string `json:"graded_by,omitempty" gorm:"size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Grade) TableName() string {
	return "quiz_grades"
}

// GradeRange maps a percentage interval to a letter band. MinScore is inclusive.
type GradeRange struct {
	MinScore float64 `json:"min_score"`
	Grade    string  `json:"grade"`
}

// DefaultLetterBands is ordered from highest to lowest threshold.
var DefaultLetterBands = []GradeRange{
	{MinScore: 90, Grade: "A"},
	{MinScore: 80, Grade: "B"},
	{MinScore: 70, Grade: "C"},
	{MinScore: 60, Grade: "D"},
	{MinScore: 0, Grade: "F"},
}
