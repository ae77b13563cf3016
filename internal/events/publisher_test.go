package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGoChannelPublisher_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	publisher, pubSub := NewGoChannelEventPublisher(PublisherConfig{TopicName: "quiz.notifications", Logger: discardLogger()})
	defer publisher.Close()

	messages, err := pubSub.Subscribe(ctx, "quiz.notifications")
	require.NoError(t, err)

	event := NewNotificationRequestedEvent("s1", models.NotificationQuizUpcoming, "Capitals", "starts tomorrow", models.PriorityNormal, map[string]interface{}{"quiz_id": 1})
	require.NoError(t, publisher.PublishNotificationEvent(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(EventNotificationRequested), msg.Metadata.Get("event_type"))

		decoded, err := DecodeEvent(msg)
		require.NoError(t, err)
		assert.Equal(t, EventNotificationRequested, decoded.Type)
		data, ok := decoded.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "s1", data["recipient_id"])
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestEventFactories(t *testing.T) {
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	quiz := &models.Quiz{ID: 4, Title: "Capitals", TimeLimitEnforced: true, DurationMinutes: 30}
	attempt := &models.Attempt{ID: 9, QuizID: 4, StudentID: "s1", AttemptNumber: 2, StartedAt: started}

	event := NewAttemptStartedEvent(attempt, quiz)
	assert.Equal(t, EventAttemptStarted, event.Type)
	assert.Equal(t, "quiz-engine", event.Source)
	assert.NotEmpty(t, event.ID)
	data := event.Data.(AttemptStartedEvent)
	require.NotNil(t, data.TimeLimit)
	assert.Equal(t, 30, *data.TimeLimit)
	assert.Equal(t, 2, data.AttemptNumber)

	assert.NotEqual(t, GenerateEventID(), GenerateEventID())
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(discardLogger())
	ctx := context.Background()

	require.NoError(t, mock.PublishNotificationEvent(ctx, NewGradesPublishedEvent(&models.Quiz{ID: 1}, 3, time.Now())))
	require.NoError(t, mock.PublishNotificationEvent(ctx, NewNotificationRequestedEvent("s1", models.NotificationResultAvailable, "t", "m", models.PriorityHigh, nil)))

	assert.Len(t, mock.GetPublishedEvents(), 2)
	assert.Len(t, mock.EventsOfType(EventGradesPublished), 1)

	mock.ClearEvents()
	assert.Empty(t, mock.GetPublishedEvents())
}
