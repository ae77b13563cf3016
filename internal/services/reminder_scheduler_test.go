package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-engine/internal/events"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

type recordingSink struct {
	mu       sync.Mutex
	sent     map[string][]string
	failFor  map[string]bool
	metadata []map[string]interface{}
}

func newRecordingSink(failing ...string) *recordingSink {
	s := &recordingSink{sent: map[string][]string{}, failFor: map[string]bool{}}
	for _, id := range failing {
		s.failFor[id] = true
	}
	return s
}

func (s *recordingSink) Notify(ctx context.Context, studentID, title, message string, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[studentID] {
		return errors.New("mailbox full")
	}
	s.sent[studentID] = append(s.sent[studentID], title)
	s.metadata = append(s.metadata, metadata)
	return nil
}

func (s *recordingSink) count(studentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent[studentID])
}

func scheduledQuiz(start time.Time) func(*models.Quiz) {
	end := start.Add(2 * time.Hour)
	return func(q *models.Quiz) {
		q.Status = models.QuizScheduled
		q.StartTime = &start
		q.EndTime = &end
	}
}

func newScheduler(env *testEnv, sink NotificationSink) *ReminderScheduler {
	return NewReminderScheduler(env.repo, env.directory, sink, env.attempts, env.clock, discardLogger(), SchedulerConfig{
		ScanInterval:        10 * time.Millisecond,
		CollaboratorTimeout: time.Second,
	})
}

func TestReminderScheduler_UpcomingOncePerQuiz(t *testing.T) {
	env := newTestEnv(t)
	env.directory.Enroll("math-101", "alice", "bob")
	quiz, _ := env.scoringQuiz(t, scheduledQuiz(baseTime.Add(3*time.Hour)))
	sink := newRecordingSink()
	scheduler := newScheduler(env, sink)
	ctx := context.Background()

	report, err := scheduler.RunScan(ctx, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, report.QuizzesScanned)
	assert.Equal(t, 2, report.UpcomingSent)
	assert.Zero(t, report.StartingSoonSent)
	assert.Zero(t, report.Activated)

	report, err = scheduler.RunScan(ctx, baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, report.UpcomingSent)
	assert.Equal(t, 1, report.SkippedDuplicates)

	assert.Equal(t, 1, sink.count("alice"))
	assert.Equal(t, 1, sink.count("bob"))
	assert.Equal(t, quiz.ID, sink.metadata[0]["quiz_id"])
	assert.Equal(t, models.NotificationQuizUpcoming, sink.metadata[0][MetaNotificationType])
}

func TestReminderScheduler_RescheduledQuizIsRemindedAgain(t *testing.T) {
	env := newTestEnv(t)
	env.directory.Enroll("math-101", "alice")
	quiz, _ := env.scoringQuiz(t, scheduledQuiz(baseTime.Add(3*time.Hour)))
	sink := newRecordingSink()
	scheduler := newScheduler(env, sink)
	ctx := context.Background()

	report, err := scheduler.RunScan(ctx, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, report.UpcomingSent)

	scheduledQuiz(baseTime.Add(6 * time.Hour))(quiz)
	require.NoError(t, env.repo.Quiz().SaveQuiz(ctx, quiz))

	report, err = scheduler.RunScan(ctx, baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, report.UpcomingSent)
	assert.Zero(t, report.SkippedDuplicates)
	assert.Equal(t, 2, sink.count("alice"))

	report, err = scheduler.RunScan(ctx, baseTime.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, report.UpcomingSent)
	assert.Equal(t, 1, report.SkippedDuplicates)
}

func TestReminderScheduler_OutsideHorizonIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.directory.Enroll("math-101", "alice")
	env.scoringQuiz(t, scheduledQuiz(baseTime.Add(48*time.Hour)))
	sink := newRecordingSink()

	report, err := newScheduler(env, sink).RunScan(context.Background(), baseTime)
	require.NoError(t, err)
	assert.Zero(t, report.QuizzesScanned)
	assert.Zero(t, sink.count("alice"))
}

func TestReminderScheduler_StartingSoonThenActivation(t *testing.T) {
	env := newTestEnv(t)
	env.directory.Enroll("math-101", "alice")
	start := baseTime.Add(3 * time.Hour)
	quiz, _ := env.scoringQuiz(t, scheduledQuiz(start))
	scheduler := newScheduler(env, env.notifier)
	ctx := context.Background()

	report, err := scheduler.RunScan(ctx, start.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, report.StartingSoonSent)
	assert.Zero(t, report.UpcomingSent)

	report, err = scheduler.RunScan(ctx, start)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Activated)
	assert.Zero(t, report.StartingSoonSent)

	stored, err := env.repo.Quiz().GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuizActive, stored.Status)
	assert.Len(t, env.publisher.EventsOfType(events.EventQuizStatusChanged), 1)
	assert.Len(t, env.publisher.EventsOfType(events.EventNotificationRequested), 1)

	report, err = scheduler.RunScan(ctx, start.Add(2*time.Hour+time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)

	stored, err = env.repo.Quiz().GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuizCompleted, stored.Status)
}

func TestReminderScheduler_DeliveryFailuresCounted(t *testing.T) {
	env := newTestEnv(t)
	env.directory.Enroll("math-101", "alice", "bob")
	env.scoringQuiz(t, scheduledQuiz(baseTime.Add(3*time.Hour)))
	sink := newRecordingSink("bob")
	scheduler := newScheduler(env, sink)

	report, err := scheduler.RunScan(context.Background(), baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, report.UpcomingSent)
	assert.Equal(t, 1, report.DeliveryFailures)

	// The ledger entry is already claimed, a re-run does not retry
	report, err = scheduler.RunScan(context.Background(), baseTime)
	require.NoError(t, err)
	assert.Zero(t, report.DeliveryFailures)
	assert.Equal(t, 1, report.SkippedDuplicates)
}

func TestReminderScheduler_ConcurrentScansNeverDoubleNotify(t *testing.T) {
	env := newTestEnv(t)
	env.directory.Enroll("math-101", "alice", "bob", "carol")
	env.scoringQuiz(t, scheduledQuiz(baseTime.Add(3*time.Hour)))
	sink := newRecordingSink()
	scheduler := newScheduler(env, sink)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := scheduler.RunScan(context.Background(), baseTime)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, id := range []string{"alice", "bob", "carol"} {
		assert.Equal(t, 1, sink.count(id), id)
	}
}

func TestReminderScheduler_ExpiresOverdueAttempts(t *testing.T) {
	env := newTestEnv(t)
	quiz, _ := env.scoringQuiz(t, func(q *models.Quiz) {
		q.TimeLimitEnforced = true
		q.DurationMinutes = 30
	})
	_, err := env.attempts.StartAttempt(context.Background(), student("alice"), quiz.ID)
	require.NoError(t, err)

	report, err := newScheduler(env, newRecordingSink()).RunScan(context.Background(), baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.AttemptsExpired)
	assert.Equal(t, 1, env.gradeCount(t, quiz.ID))
}

func TestReminderScheduler_StartStop(t *testing.T) {
	env := newTestEnv(t)
	env.directory.Enroll("math-101", "alice")
	env.scoringQuiz(t, scheduledQuiz(baseTime.Add(3*time.Hour)))
	sink := newRecordingSink()
	scheduler := newScheduler(env, sink)

	scheduler.Start(context.Background())
	assert.Eventually(t, func() bool { return sink.count("alice") == 1 }, time.Second, 5*time.Millisecond)
	scheduler.Stop()
	scheduler.Stop()

	assert.Equal(t, 1, sink.count("alice"))
}

func TestReminderScheduler_StopWithoutStart(t *testing.T) {
	env := newTestEnv(t)
	scheduler := newScheduler(env, newRecordingSink())

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without Start")
	}
}
