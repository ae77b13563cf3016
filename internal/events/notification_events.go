package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

// EventType represents different types of notification events
type EventType string

const (
	// Quiz events
	EventQuizStatusChanged EventType = "quiz.status_changed"
	EventGradesPublished   EventType = "quiz.grades_published"

	// Attempt events
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptSubmitted EventType = "attempt.submitted"
	EventAttemptGraded    EventType = "attempt.graded"

	// Delivery requests consumed by the notification service
	EventNotificationRequested EventType = "notification.requested"
)

const (
	eventSource  = "quiz-engine"
	eventVersion = "1.0"
)

// NotificationEvent is the base event structure for all notification events
type NotificationEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Quiz event payloads

type QuizStatusChangedEvent struct {
	QuizID    uint              `json:"quiz_id"`
	QuizTitle string            `json:"quiz_title"`
	From      models.QuizStatus `json:"from"`
	To        models.QuizStatus `json:"to"`
	ChangedAt time.Time         `json:"changed_at"`
}

type GradesPublishedEvent struct {
	QuizID      uint      `json:"quiz_id"`
	QuizTitle   string    `json:"quiz_title"`
	GradeCount  int64     `json:"grade_count"`
	PublishedAt time.Time `json:"published_at"`
}

// Attempt event payloads

type AttemptStartedEvent struct {
	AttemptID     uint      `json:"attempt_id"`
	QuizID        uint      `json:"quiz_id"`
	StudentID     string    `json:"student_id"`
	AttemptNumber int       `json:"attempt_number"`
	StartedAt     time.Time `json:"started_at"`
	TimeLimit     *int      `json:"time_limit,omitempty"` // minutes
}

type AttemptSubmittedEvent struct {
	AttemptID   uint      `json:"attempt_id"`
	QuizID      uint      `json:"quiz_id"`
	StudentID   string    `json:"student_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Score       float64   `json:"score"`
	Passed      bool      `json:"passed"`
	Forced      bool      `json:"forced"`
	// Set when essay or code answers still need a human
	GradingRequired bool `json:"grading_required"`
}

type AttemptGradedEvent struct {
	AttemptID  uint      `json:"attempt_id"`
	QuizID     uint      `json:"quiz_id"`
	StudentID  string    `json:"student_id"`
	GradedAt   time.Time `json:"graded_at"`
	Score      float64   `json:"score"`
	MaxScore   float64   `json:"max_score"`
	Percentage float64   `json:"percentage"`
	Grade      string    `json:"grade"`
	Passed     bool      `json:"passed"`
	Version    int       `json:"version"`
	GraderID   string    `json:"grader_id"`
}

// NotificationRequestedEvent asks the notification service to deliver one message to one recipient
type NotificationRequestedEvent struct {
	RecipientID string                      `json:"recipient_id"`
	Type        models.NotificationType     `json:"type"`
	Title       string                      `json:"title"`
	Message     string                      `json:"message"`
	Priority    models.NotificationPriority `json:"priority"`
	Metadata    map[string]interface{}      `json:"metadata,omitempty"`
}

// Event factory functions

func newEvent(eventType EventType, data interface{}) *NotificationEvent {
	return &NotificationEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func NewQuizStatusChangedEvent(quiz *models.Quiz, from models.QuizStatus, changedAt time.Time) *NotificationEvent {
	return newEvent(EventQuizStatusChanged, QuizStatusChangedEvent{
		QuizID:    quiz.ID,
		QuizTitle: quiz.Title,
		From:      from,
		To:        quiz.Status,
		ChangedAt: changedAt,
	})
}

func NewGradesPublishedEvent(quiz *models.Quiz, count int64, publishedAt time.Time) *NotificationEvent {
	return newEvent(EventGradesPublished, GradesPublishedEvent{
		QuizID:      quiz.ID,
		QuizTitle:   quiz.Title,
		GradeCount:  count,
		PublishedAt: publishedAt,
	})
}

func NewAttemptStartedEvent(attempt *models.Attempt, quiz *models.Quiz) *NotificationEvent {
	var timeLimit *int
	if quiz.TimeLimitEnforced {
		minutes := quiz.DurationMinutes
		timeLimit = &minutes
	}
	return newEvent(EventAttemptStarted, AttemptStartedEvent{
		AttemptID:     attempt.ID,
		QuizID:        attempt.QuizID,
		StudentID:     attempt.StudentID,
		AttemptNumber: attempt.AttemptNumber,
		StartedAt:     attempt.StartedAt,
		TimeLimit:     timeLimit,
	})
}

func NewAttemptSubmittedEvent(attempt *models.Attempt, gradingRequired bool) *NotificationEvent {
	data := AttemptSubmittedEvent{
		AttemptID:       attempt.ID,
		QuizID:          attempt.QuizID,
		StudentID:       attempt.StudentID,
		Forced:          attempt.Forced,
		GradingRequired: gradingRequired,
	}
	if attempt.SubmittedAt != nil {
		data.SubmittedAt = *attempt.SubmittedAt
	}
	if attempt.Score != nil {
		data.Score = *attempt.Score
	}
	if attempt.IsPassed != nil {
		data.Passed = *attempt.IsPassed
	}
	return newEvent(EventAttemptSubmitted, data)
}

func NewAttemptGradedEvent(grade *models.Grade, gradedAt time.Time) *NotificationEvent {
	data := AttemptGradedEvent{
		AttemptID:  grade.AttemptID,
		QuizID:     grade.QuizID,
		StudentID:  grade.StudentID,
		GradedAt:   gradedAt,
		Score:      grade.Marks,
		MaxScore:   grade.MaxMarks,
		Percentage: grade.Percentage,
		Grade:      grade.Grade,
		Passed:     grade.IsPassed,
		Version:    grade.Version,
	}
	if grade.GradedBy != nil {
		data.GraderID = *grade.GradedBy
	}
	return newEvent(EventAttemptGraded, data)
}

func NewNotificationRequestedEvent(recipientID string, notificationType models.NotificationType, title, message string, priority models.NotificationPriority, metadata map[string]interface{}) *NotificationEvent {
	return newEvent(EventNotificationRequested, NotificationRequestedEvent{
		RecipientID: recipientID,
		Type:        notificationType,
		Title:       title,
		Message:     message,
		Priority:    priority,
		Metadata:    metadata,
	})
}

// GenerateEventID returns a random UUID for event envelopes
func GenerateEventID() string {
	return uuid.NewString()
}
