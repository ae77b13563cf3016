package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

// ===== ATTEMPT RELATED DTOs =====

type StartAttemptResult struct {
	Attempt   *models.Attempt    `json:"attempt"`
	Questions []RenderedQuestion `json:"questions"`
	// Set when an overrun attempt had to be force-closed before this one could start
	ClosedPrevious *AttemptResult `json:"closed_previous,omitempty"`
}

type AnswerInput struct {
	QuestionID uint   `json:"question_id" validate:"required"`
	Answer     string `json:"answer" validate:"max=20000"`
}

// AnswerAck confirms a stored answer without revealing whether it was correct
type AnswerAck struct {
	AttemptID  uint      `json:"attempt_id"`
	QuestionID uint      `json:"question_id"`
	AnsweredAt time.Time `json:"answered_at"`
	// False for essay and code questions, which wait for a grader
	AutoGraded bool `json:"auto_graded"`
}

type AttemptResult struct {
	Attempt *models.Attempt `json:"attempt"`
	Result  Result          `json:"result"`
	Grade   *models.Grade   `json:"grade"`
	Forced  bool            `json:"forced"`
	// True when the attempt had already been closed before this call
	AlreadyClosed bool `json:"already_closed"`
}

type AttemptStatus struct {
	Attempt        *models.Attempt `json:"attempt"`
	AnsweredCount  int             `json:"answered_count"`
	QuestionCount  int             `json:"question_count"`
	Deadline       *time.Time      `json:"deadline,omitempty"`
	RemainingSecs  *int64          `json:"remaining_seconds,omitempty"`
	Grade          *models.Grade   `json:"grade,omitempty"`
	ForcedOnAccess bool            `json:"forced_on_access"`
}

// ===== QUIZ RELATED DTOs =====

type QuestionInput struct {
	Type          models.QuestionType `json:"type" validate:"required,question_type"`
	Text          string              `json:"text" validate:"required"`
	Options       []string            `json:"options"`
	CorrectAnswer string              `json:"correct_answer"`
	Marks         float64             `json:"marks" validate:"gt=0"`
	Order         int                 `json:"order"`
}

type CreateQuizRequest struct {
	SubjectID         string          `json:"subject_id" validate:"required"`
	Title             string          `json:"title" validate:"required,min=1,max=200"`
	TotalMarks        float64         `json:"total_marks" validate:"gte=0"`
	PassingMarks      *float64        `json:"passing_marks" validate:"omitempty,min=0"`
	MaxAttempts       int             `json:"max_attempts" validate:"min=1"`
	ShuffleQuestions  bool            `json:"shuffle_questions"`
	ShuffleOptions    bool            `json:"shuffle_options"`
	TimeLimitEnforced bool            `json:"time_limit_enforced"`
	DurationMinutes   int             `json:"duration_minutes" validate:"min=0"`
	Questions         []QuestionInput `json:"questions" validate:"dive"`
}

type PublishRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	// Activate publishes straight to ACTIVE when no start time is given
	Activate bool `json:"activate"`
}

type QuizDetail struct {
	Quiz      *models.Quiz       `json:"quiz"`
	Questions []*models.Question `json:"questions,omitempty"`
	CanStart  bool               `json:"can_start"`
}

// ===== GRADING RELATED DTOs =====

type OverrideRequest struct {
	Marks    float64 `json:"marks" validate:"gte=0"`
	Feedback string  `json:"feedback" validate:"max=2000"`
}

type RegradeResult struct {
	Attempt *models.Attempt `json:"attempt"`
	Result  Result          `json:"result"`
	Grade   *models.Grade   `json:"grade"`
	Answer  *models.Answer  `json:"answer,omitempty"`
}

type GradeReport struct {
	Grades []*models.Grade          `json:"grades"`
	Stats  repositories.GradeStats `json:"stats"`
}

// ===== SCHEDULER DTOs =====

type ScanReport struct {
	ScannedAt         time.Time `json:"scanned_at"`
	QuizzesScanned    int       `json:"quizzes_scanned"`
	UpcomingSent      int       `json:"upcoming_sent"`
	StartingSoonSent  int       `json:"starting_soon_sent"`
	DeliveryFailures  int       `json:"delivery_failures"`
	Activated         int       `json:"activated"`
	Completed         int       `json:"completed"`
	TransitionErrors  int       `json:"transition_errors"`
	AttemptsExpired   int       `json:"attempts_expired"`
	SkippedDuplicates int       `json:"skipped_duplicates"`
}

// ===== SERVICE INTERFACES =====

// AttemptService drives a student's attempt from start to grade
type AttemptService interface {
	StartAttempt(ctx context.Context, caller CallerContext, quizID uint) (*StartAttemptResult, error)
	ResumeAttempt(ctx context.Context, caller CallerContext, attemptID uint) (*StartAttemptResult, error)
	SubmitAnswer(ctx context.Context, caller CallerContext, attemptID, questionID uint, rawAnswer string) (*AnswerAck, error)
	SubmitAnswers(ctx context.Context, caller CallerContext, attemptID uint, answers []AnswerInput) ([]AnswerAck, error)
	CloseAttempt(ctx context.Context, caller CallerContext, attemptID uint) (*AttemptResult, error)
	GetAttemptStatus(ctx context.Context, caller CallerContext, attemptID uint) (*AttemptStatus, error)

	// ExpireOverdueAttempts force-closes open attempts whose time limit ended before now
	ExpireOverdueAttempts(ctx context.Context, now time.Time) (int, error)
}

// QuizService covers authoring, publishing and manual status changes
type QuizService interface {
	CreateQuiz(ctx context.Context, caller CallerContext, req *CreateQuizRequest) (*QuizDetail, error)
	GetQuiz(ctx context.Context, caller CallerContext, quizID uint) (*QuizDetail, error)
	Publish(ctx context.Context, caller CallerContext, quizID uint, req *PublishRequest) (*models.Quiz, error)
	Activate(ctx context.Context, caller CallerContext, quizID uint) (*models.Quiz, error)
	Complete(ctx context.Context, caller CallerContext, quizID uint) (*models.Quiz, error)
}

// GradingService records manual marks and produces new grade versions
type GradingService interface {
	OverrideAnswer(ctx context.Context, caller CallerContext, answerID uint, req *OverrideRequest) (*RegradeResult, error)
	RegradeAttempt(ctx context.Context, caller CallerContext, attemptID uint) (*RegradeResult, error)
	PublishGrades(ctx context.Context, caller CallerContext, quizID uint) (int64, error)
	GetGrades(ctx context.Context, caller CallerContext, quizID uint) (*GradeReport, error)
}

// ReportService exports gradebooks
type ReportService interface {
	ExportGrades(ctx context.Context, caller CallerContext, quizID uint) ([]byte, error)
}
