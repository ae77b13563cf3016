package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/events"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

// NotificationSink delivers one message to one student. Delivery itself happens downstream.
type NotificationSink interface {
	Notify(ctx context.Context, studentID, title, message string, metadata map[string]interface{}) error
}

// Metadata keys understood by the event sink
const (
	MetaNotificationType = "notification_type"
	MetaPriority         = "priority"
)

// NotificationEventService turns engine activity into events on the configured publisher.
// Publish* calls are best-effort: failures are logged and swallowed.
type NotificationEventService interface {
	NotificationSink

	PublishAttemptStarted(ctx context.Context, attempt *models.Attempt, quiz *models.Quiz)
	PublishAttemptSubmitted(ctx context.Context, attempt *models.Attempt, gradingRequired bool)
	PublishAttemptGraded(ctx context.Context, grade *models.Grade, gradedAt time.Time)
	PublishQuizStatusChanged(ctx context.Context, quiz *models.Quiz, from models.QuizStatus, changedAt time.Time)
	PublishGradesPublished(ctx context.Context, quiz *models.Quiz, count int64, publishedAt time.Time)
}

type notificationEventService struct {
	eventPublisher events.EventPublisher
	logger         *slog.Logger
}

func NewNotificationEventService(eventPublisher events.EventPublisher, logger *slog.Logger) NotificationEventService {
	return &notificationEventService{
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// ===== NOTIFICATION SINK =====

func (s *notificationEventService) Notify(ctx context.Context, studentID, title, message string, metadata map[string]interface{}) error {
	notificationType := models.NotificationType("")
	priority := models.PriorityNormal
	if t, ok := metadata[MetaNotificationType].(models.NotificationType); ok {
		notificationType = t
	}
	if p, ok := metadata[MetaPriority].(models.NotificationPriority); ok {
		priority = p
	}

	event := events.NewNotificationRequestedEvent(studentID, notificationType, title, message, priority, metadata)
	if err := s.eventPublisher.PublishNotificationEvent(ctx, event); err != nil {
		return &CollaboratorError{Collaborator: "notification_sink", Operation: "notify", Err: err}
	}
	return nil
}

// ===== ATTEMPT EVENTS =====

func (s *notificationEventService) PublishAttemptStarted(ctx context.Context, attempt *models.Attempt, quiz *models.Quiz) {
	s.publish(ctx, events.NewAttemptStartedEvent(attempt, quiz), "attempt_id", attempt.ID)
}

func (s *notificationEventService) PublishAttemptSubmitted(ctx context.Context, attempt *models.Attempt, gradingRequired bool) {
	s.publish(ctx, events.NewAttemptSubmittedEvent(attempt, gradingRequired), "attempt_id", attempt.ID)
}

func (s *notificationEventService) PublishAttemptGraded(ctx context.Context, grade *models.Grade, gradedAt time.Time) {
	s.publish(ctx, events.NewAttemptGradedEvent(grade, gradedAt), "attempt_id", grade.AttemptID)
}

// ===== QUIZ EVENTS =====

func (s *notificationEventService) PublishQuizStatusChanged(ctx context.Context, quiz *models.Quiz, from models.QuizStatus, changedAt time.Time) {
	s.publish(ctx, events.NewQuizStatusChangedEvent(quiz, from, changedAt), "quiz_id", quiz.ID)
}

func (s *notificationEventService) PublishGradesPublished(ctx context.Context, quiz *models.Quiz, count int64, publishedAt time.Time) {
	s.publish(ctx, events.NewGradesPublishedEvent(quiz, count, publishedAt), "quiz_id", quiz.ID)
}

func (s *notificationEventService) publish(ctx context.Context, event *events.NotificationEvent, idKey string, id uint) {
	if err := s.eventPublisher.PublishNotificationEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			"event_type", event.Type,
			idKey, id,
			"error", err)
	}
}
