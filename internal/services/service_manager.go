package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/events"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"github.com/SAP-F-2025/quiz-engine/internal/validator"
)

// ServiceManager owns every service and the scheduler's lifecycle
type ServiceManager interface {
	Quiz() QuizService
	Attempt() AttemptService
	Grading() GradingService
	Report() ReportService
	Notifications() NotificationEventService
	Scheduler() *ReminderScheduler

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	CollaboratorTimeout time.Duration
	GradeScheme         models.GradingSchemeType

	SchedulerEnabled bool
	Scheduler        SchedulerConfig
}

// ServiceDependencies are the collaborators injected into every service
type ServiceDependencies struct {
	Repo      repositories.Repository
	Directory repositories.EnrollmentDirectory
	Publisher events.EventPublisher
	// Optional cross-instance lock for StartAttempt
	Locker    Locker
	Validator *validator.Validator
	Clock     Clock
	Logger    *slog.Logger
}

type serviceManager struct {
	deps   ServiceDependencies
	config ServiceManagerConfig

	quizService     QuizService
	attemptService  AttemptService
	gradingService  GradingService
	reportService   ReportService
	notifications   NotificationEventService
	reminderService *ReminderScheduler

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(deps ServiceDependencies, config ServiceManagerConfig) ServiceManager {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewMockEventPublisher(deps.Logger)
	}
	return &serviceManager{deps: deps, config: config}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.deps.Repo == nil {
		return errors.New("service manager requires a repository")
	}

	logger := sm.deps.Logger
	logger.Info("Initializing service manager")

	sm.notifications = NewNotificationEventService(sm.deps.Publisher, logger)
	sm.quizService = NewQuizService(sm.deps.Repo, sm.deps.Clock, sm.notifications, sm.deps.Validator, logger)
	sm.attemptService = NewAttemptService(sm.deps.Repo, sm.deps.Clock, sm.notifications, sm.deps.Locker, logger, AttemptConfig{
		CollaboratorTimeout: sm.config.CollaboratorTimeout,
		GradeScheme:         sm.config.GradeScheme,
	})
	sm.gradingService = NewGradingService(sm.deps.Repo, sm.deps.Clock, sm.notifications, sm.deps.Validator, sm.config.GradeScheme, logger)
	sm.reportService = NewReportService(sm.deps.Repo, logger)

	if sm.deps.Directory != nil {
		schedulerConfig := sm.config.Scheduler
		if schedulerConfig.CollaboratorTimeout == 0 {
			schedulerConfig.CollaboratorTimeout = sm.config.CollaboratorTimeout
		}
		sm.reminderService = NewReminderScheduler(sm.deps.Repo, sm.deps.Directory, sm.notifications, sm.attemptService, sm.deps.Clock, logger, schedulerConfig)
		if sm.config.SchedulerEnabled {
			sm.reminderService.Start(context.WithoutCancel(ctx))
		}
	} else {
		logger.Warn("No enrollment directory configured, reminder scheduler disabled")
	}

	sm.initialized = true
	logger.Info("Service manager initialized successfully",
		"grade_scheme", sm.config.GradeScheme,
		"scheduler_enabled", sm.config.SchedulerEnabled && sm.reminderService != nil)
	return nil
}

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.shutdown {
		return errors.New("service manager not running")
	}
	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}
	sm.shutdown = true

	done := make(chan struct{})
	go func() {
		if sm.reminderService != nil {
			sm.reminderService.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("scheduler did not stop: %w", ctx.Err())
	}

	if err := sm.deps.Publisher.Close(); err != nil {
		return fmt.Errorf("failed to close event publisher: %w", err)
	}
	sm.deps.Logger.Info("Service manager shut down")
	return nil
}

// Service getters
func (sm *serviceManager) Quiz() QuizService {
	sm.mustBeInitialized()
	return sm.quizService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mustBeInitialized()
	return sm.attemptService
}

func (sm *serviceManager) Grading() GradingService {
	sm.mustBeInitialized()
	return sm.gradingService
}

func (sm *serviceManager) Report() ReportService {
	sm.mustBeInitialized()
	return sm.reportService
}

func (sm *serviceManager) Notifications() NotificationEventService {
	sm.mustBeInitialized()
	return sm.notifications
}

// Scheduler returns nil when no enrollment directory is configured
func (sm *serviceManager) Scheduler() *ReminderScheduler {
	sm.mustBeInitialized()
	return sm.reminderService
}

func (sm *serviceManager) mustBeInitialized() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
}
