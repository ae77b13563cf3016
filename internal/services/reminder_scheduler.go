package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

// SchedulerConfig controls the reminder scan
type SchedulerConfig struct {
	ScanInterval        time.Duration
	DayAheadHorizon     time.Duration
	ImminentHorizon     time.Duration
	CollaboratorTimeout time.Duration
}

// quizEventPublisher is implemented by sinks that also publish quiz lifecycle events
type quizEventPublisher interface {
	PublishQuizStatusChanged(ctx context.Context, quiz *models.Quiz, from models.QuizStatus, changedAt time.Time)
}

// ReminderScheduler periodically notifies enrolled students about upcoming quizzes and
// applies the schedule-driven status transitions. Runs never overlap.
type ReminderScheduler struct {
	repo      repositories.Repository
	directory repositories.EnrollmentDirectory
	sink      NotificationSink
	attempts  AttemptService
	clock     Clock
	logger    *slog.Logger
	config    SchedulerConfig

	running  sync.Mutex
	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewReminderScheduler creates the scheduler. attempts may be nil to skip the overdue-attempt sweep.
func NewReminderScheduler(repo repositories.Repository, directory repositories.EnrollmentDirectory, sink NotificationSink, attempts AttemptService, clock Clock, logger *slog.Logger, config SchedulerConfig) *ReminderScheduler {
	if config.ScanInterval <= 0 {
		config.ScanInterval = time.Minute
	}
	if config.DayAheadHorizon <= 0 {
		config.DayAheadHorizon = 24 * time.Hour
	}
	if config.ImminentHorizon <= 0 {
		config.ImminentHorizon = 30 * time.Minute
	}
	return &ReminderScheduler{
		repo:      repo,
		directory: directory,
		sink:      sink,
		attempts:  attempts,
		clock:     clock,
		logger:    logger.With("component", "reminder_scheduler"),
		config:    config,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs RunScan on every tick until ctx ends or Stop is called. Ticks that find a
// scan still running are skipped.
func (s *ReminderScheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.config.ScanInterval)
		defer ticker.Stop()

		s.logger.Info("Reminder scheduler started", "interval", s.config.ScanInterval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				if !s.running.TryLock() {
					s.logger.Debug("Previous scan still running, skipping tick")
					continue
				}
				if _, err := s.scanLocked(ctx, s.clock.Now()); err != nil {
					s.logger.Error("Reminder scan failed", "error", err)
				}
				s.running.Unlock()
			}
		}
	}()
}

// Stop ends the loop started by Start and waits for an in-flight scan to finish
func (s *ReminderScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	if !s.started.Load() {
		return
	}
	<-s.done
	s.logger.Info("Reminder scheduler stopped")
}

// RunScan performs one scan at now. Concurrent callers wait for the running scan.
func (s *ReminderScheduler) RunScan(ctx context.Context, now time.Time) (*ScanReport, error) {
	s.running.Lock()
	defer s.running.Unlock()
	return s.scanLocked(ctx, now)
}

func (s *ReminderScheduler) scanLocked(ctx context.Context, now time.Time) (*ScanReport, error) {
	report := &ScanReport{ScannedAt: now}

	listCtx, cancel := s.bound(ctx)
	quizzes, err := s.repo.Quiz().ListSchedulable(listCtx, now.Add(s.config.DayAheadHorizon))
	cancel()
	if err != nil {
		return nil, collaboratorFailure("quiz_repository", "list_schedulable", err)
	}
	report.QuizzesScanned = len(quizzes)

	for _, quiz := range quizzes {
		// Notifications are decided on the status read at scan start, independent of the transition below.
		// A quiz already inside the imminent horizon only gets the starting-soon reminder.
		switch {
		case s.dueStartingSoon(quiz, now):
			s.remind(ctx, quiz, models.ReminderStartingSoon, report)
		case s.dueUpcoming(quiz, now):
			s.remind(ctx, quiz, models.ReminderUpcoming, report)
		}
		s.transition(ctx, quiz, now, report)
	}

	if s.attempts != nil {
		expired, err := s.attempts.ExpireOverdueAttempts(ctx, now)
		report.AttemptsExpired = expired
		if err != nil {
			s.logger.Warn("Overdue attempt sweep incomplete", "error", err)
		}
	}

	s.logger.Info("Reminder scan finished",
		"quizzes", report.QuizzesScanned,
		"upcoming_sent", report.UpcomingSent,
		"starting_soon_sent", report.StartingSoonSent,
		"delivery_failures", report.DeliveryFailures,
		"activated", report.Activated,
		"completed", report.Completed,
		"attempts_expired", report.AttemptsExpired)

	return report, nil
}

func (s *ReminderScheduler) dueUpcoming(quiz *models.Quiz, now time.Time) bool {
	if quiz.Status != models.QuizScheduled || quiz.StartTime == nil {
		return false
	}
	start := *quiz.StartTime
	return start.After(now) && !start.After(now.Add(s.config.DayAheadHorizon))
}

func (s *ReminderScheduler) dueStartingSoon(quiz *models.Quiz, now time.Time) bool {
	if quiz.StartTime == nil || quiz.StartTime.After(now.Add(s.config.ImminentHorizon)) {
		return false
	}
	if quiz.EndTime != nil && now.After(*quiz.EndTime) {
		return false
	}
	// An ACTIVE quiz only qualifies when it was opened manually ahead of its start time
	return quiz.Status == models.QuizScheduled || quiz.StartTime.After(now)
}

// remind claims (quiz, start time, kind) in the ledger and notifies every enrolled student.
// The ledger claim happens before delivery so a re-run never double-notifies.
func (s *ReminderScheduler) remind(ctx context.Context, quiz *models.Quiz, kind models.ReminderKind, report *ScanReport) {
	dirCtx, cancel := s.bound(ctx)
	students, err := s.directory.ListEnrolledStudents(dirCtx, quiz.SubjectID)
	cancel()
	if err != nil {
		report.DeliveryFailures++
		s.logger.Warn("Failed to list enrolled students",
			"quiz_id", quiz.ID,
			"subject_id", quiz.SubjectID,
			"error", err)
		return
	}

	ledgerCtx, cancel := s.bound(ctx)
	var startsAt time.Time
	if quiz.StartTime != nil {
		startsAt = *quiz.StartTime
	}
	first, err := s.repo.Reminder().MarkSent(ledgerCtx, quiz.ID, startsAt, kind, len(students))
	cancel()
	if err != nil {
		report.DeliveryFailures++
		s.logger.Warn("Failed to record reminder",
			"quiz_id", quiz.ID,
			"kind", kind,
			"error", err)
		return
	}
	if !first {
		report.SkippedDuplicates++
		return
	}

	title, message, metadata := reminderContent(quiz, kind)
	for _, studentID := range students {
		sendCtx, cancel := s.bound(ctx)
		err := s.sink.Notify(sendCtx, studentID, title, message, metadata)
		cancel()
		if err != nil {
			report.DeliveryFailures++
			s.logger.Warn("Failed to deliver reminder",
				"quiz_id", quiz.ID,
				"student_id", studentID,
				"kind", kind,
				"error", err)
			continue
		}
		switch kind {
		case models.ReminderUpcoming:
			report.UpcomingSent++
		case models.ReminderStartingSoon:
			report.StartingSoonSent++
		}
	}
}

// transition persists the status the schedule implies at now
func (s *ReminderScheduler) transition(ctx context.Context, quiz *models.Quiz, now time.Time, report *ScanReport) {
	target := Resolve(quiz, now)
	if target == quiz.Status {
		return
	}

	updateCtx, cancel := s.bound(ctx)
	err := s.repo.Quiz().UpdateQuizStatus(updateCtx, quiz.ID, target)
	cancel()
	if err != nil {
		report.TransitionErrors++
		s.logger.Error("Failed to transition quiz",
			"quiz_id", quiz.ID,
			"from", quiz.Status,
			"to", target,
			"error", err)
		return
	}

	from := quiz.Status
	quiz.Status = target
	switch target {
	case models.QuizActive:
		report.Activated++
	case models.QuizCompleted:
		report.Completed++
	}

	if publisher, ok := s.sink.(quizEventPublisher); ok {
		publisher.PublishQuizStatusChanged(ctx, quiz, from, now)
	}
	s.logger.Info("Quiz transitioned by scan",
		"quiz_id", quiz.ID,
		"from", from,
		"to", target)
}

func (s *ReminderScheduler) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.CollaboratorTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.CollaboratorTimeout)
}

func reminderContent(quiz *models.Quiz, kind models.ReminderKind) (string, string, map[string]interface{}) {
	start := quiz.StartTime.UTC().Format(time.RFC1123)
	metadata := map[string]interface{}{
		"quiz_id":    quiz.ID,
		"subject_id": quiz.SubjectID,
		"start_time": quiz.StartTime.UTC(),
	}

	switch kind {
	case models.ReminderStartingSoon:
		metadata[MetaNotificationType] = models.NotificationQuizStartingSoon
		metadata[MetaPriority] = models.PriorityHigh
		return fmt.Sprintf("Quiz starting soon: %s", quiz.Title),
			fmt.Sprintf("%s opens at %s. Good luck!", quiz.Title, start),
			metadata
	default:
		metadata[MetaNotificationType] = models.NotificationQuizUpcoming
		metadata[MetaPriority] = models.PriorityNormal
		return fmt.Sprintf("Upcoming quiz: %s", quiz.Title),
			fmt.Sprintf("%s is scheduled for %s.", quiz.Title, start),
			metadata
	}
}
