package services

import (
	"context"
	"log/slog"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"github.com/SAP-F-2025/quiz-engine/internal/validator"
)

type quizService struct {
	repo      repositories.Repository
	clock     Clock
	notifier  NotificationEventService
	validator *validator.Validator
	questions *validator.QuestionValidator
	logger    *slog.Logger
	log       *ServiceLogger
}

func NewQuizService(repo repositories.Repository, clock Clock, notifier NotificationEventService, v *validator.Validator, logger *slog.Logger) QuizService {
	return &quizService{
		repo:      repo,
		clock:     clock,
		notifier:  notifier,
		validator: v,
		questions: validator.NewQuestionValidator(v),
		logger:    logger,
		log:       NewServiceLogger(logger, LogConfig{Service: "quiz-engine", Component: "quiz"}),
	}
}

func (s *quizService) CreateQuiz(ctx context.Context, caller CallerContext, req *CreateQuizRequest) (*QuizDetail, error) {
	op := s.log.WithOperation(ctx, "create_quiz", caller.StudentID)
	detail, err := s.createQuiz(ctx, caller, req)
	var id uint
	if detail != nil {
		id = detail.Quiz.ID
	}
	op.LogResult(id, "quiz", err)
	return detail, err
}

func (s *quizService) createQuiz(ctx context.Context, caller CallerContext, req *CreateQuizRequest) (*QuizDetail, error) {
	if !caller.Role.CanManageQuizzes() {
		return nil, ErrForbidden
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	quiz := &models.Quiz{
		SubjectID:         req.SubjectID,
		InstructorID:      caller.StudentID,
		Title:             req.Title,
		TotalMarks:        req.TotalMarks,
		PassingMarks:      req.PassingMarks,
		MaxAttempts:       req.MaxAttempts,
		ShuffleQuestions:  req.ShuffleQuestions,
		ShuffleOptions:    req.ShuffleOptions,
		TimeLimitEnforced: req.TimeLimitEnforced,
		DurationMinutes:   req.DurationMinutes,
		Status:            models.QuizDraft,
	}

	questions := make([]*models.Question, len(req.Questions))
	for i, input := range req.Questions {
		question := &models.Question{
			Type:          input.Type,
			Text:          input.Text,
			Options:       input.Options,
			CorrectAnswer: input.CorrectAnswer,
			Marks:         input.Marks,
			Order:         input.Order,
		}
		if question.Order == 0 {
			question.Order = i + 1
		}
		if err := s.questions.ValidateQuestion(question); err != nil {
			return nil, err
		}
		questions[i] = question
	}

	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Quiz().SaveQuiz(ctx, quiz); err != nil {
			return err
		}
		return tx.Quiz().ReplaceQuestions(ctx, quiz.ID, questions)
	})
	if err != nil {
		return nil, collaboratorFailure("quiz_repository", "save_quiz", err)
	}

	s.logger.Info("Quiz created",
		"quiz_id", quiz.ID,
		"subject_id", quiz.SubjectID,
		"question_count", len(questions))

	return &QuizDetail{Quiz: quiz, Questions: questions}, nil
}

func (s *quizService) GetQuiz(ctx context.Context, caller CallerContext, quizID uint) (*QuizDetail, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	detail := &QuizDetail{Quiz: quiz, CanStart: CanStart(quiz, now)}

	// Students only see published quizzes and never the answer key
	if !caller.Role.CanManageQuizzes() {
		if quiz.Status == models.QuizDraft {
			return nil, ErrQuizNotFound
		}
		return detail, nil
	}

	questions, err := s.repo.Quiz().GetQuestions(ctx, quizID)
	if err != nil {
		return nil, collaboratorFailure("quiz_repository", "get_questions", err)
	}
	detail.Questions = questions
	return detail, nil
}

// Publish moves a DRAFT quiz to SCHEDULED, or straight to ACTIVE when req.Activate is set and no start time is given
func (s *quizService) Publish(ctx context.Context, caller CallerContext, quizID uint, req *PublishRequest) (*models.Quiz, error) {
	op := s.log.WithOperation(ctx, "publish_quiz", caller.StudentID)
	quiz, err := s.publish(ctx, caller, quizID, req)
	op.LogResult(quizID, "quiz", err)
	return quiz, err
}

func (s *quizService) publish(ctx context.Context, caller CallerContext, quizID uint, req *PublishRequest) (*models.Quiz, error) {
	quiz, err := s.loadManagedQuiz(ctx, caller, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Status != models.QuizDraft {
		return nil, ErrInvalidStatusTransition
	}

	quiz.ScheduledAt = req.ScheduledAt
	quiz.StartTime = req.StartTime
	quiz.EndTime = req.EndTime

	var target models.QuizStatus
	switch {
	case quiz.StartTime != nil:
		target = models.QuizScheduled
	case req.Activate:
		target = models.QuizActive
	default:
		return nil, NewValidationError("start_time", "start_time is required unless the quiz is activated immediately", nil)
	}

	questions, err := s.repo.Quiz().GetQuestions(ctx, quizID)
	if err != nil {
		return nil, collaboratorFailure("quiz_repository", "get_questions", err)
	}
	if err := s.questions.ValidateForPublish(quiz, questions); err != nil {
		return nil, err
	}

	from := quiz.Status
	quiz.Status = target
	if err := s.repo.Quiz().SaveQuiz(ctx, quiz); err != nil {
		return nil, collaboratorFailure("quiz_repository", "save_quiz", err)
	}

	now := s.clock.Now()
	s.notifier.PublishQuizStatusChanged(ctx, quiz, from, now)
	s.logger.Info("Quiz published",
		"quiz_id", quiz.ID,
		"status", quiz.Status,
		"start_time", quiz.StartTime,
		"end_time", quiz.EndTime)

	return quiz, nil
}

// Activate is the manual override that opens a quiz regardless of its schedule
func (s *quizService) Activate(ctx context.Context, caller CallerContext, quizID uint) (*models.Quiz, error) {
	op := s.log.WithOperation(ctx, "activate_quiz", caller.StudentID)
	quiz, err := s.transition(ctx, caller, quizID, models.QuizActive)
	op.LogResult(quizID, "quiz", err)
	return quiz, err
}

func (s *quizService) Complete(ctx context.Context, caller CallerContext, quizID uint) (*models.Quiz, error) {
	op := s.log.WithOperation(ctx, "complete_quiz", caller.StudentID)
	quiz, err := s.transition(ctx, caller, quizID, models.QuizCompleted)
	op.LogResult(quizID, "quiz", err)
	return quiz, err
}

func (s *quizService) transition(ctx context.Context, caller CallerContext, quizID uint, target models.QuizStatus) (*models.Quiz, error) {
	quiz, err := s.loadManagedQuiz(ctx, caller, quizID)
	if err != nil {
		return nil, err
	}
	if !validTransition(quiz.Status, target) {
		return nil, ErrInvalidStatusTransition
	}

	if quiz.Status == models.QuizDraft {
		questions, err := s.repo.Quiz().GetQuestions(ctx, quizID)
		if err != nil {
			return nil, collaboratorFailure("quiz_repository", "get_questions", err)
		}
		if err := s.questions.ValidateForPublish(quiz, questions); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Quiz().UpdateQuizStatus(ctx, quizID, target); err != nil {
		return nil, collaboratorFailure("quiz_repository", "update_quiz_status", err)
	}

	from := quiz.Status
	quiz.Status = target
	s.notifier.PublishQuizStatusChanged(ctx, quiz, from, s.clock.Now())
	return quiz, nil
}

// ===== HELPER FUNCTIONS =====

func (s *quizService) loadQuiz(ctx context.Context, quizID uint) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetQuiz(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, collaboratorFailure("quiz_repository", "get_quiz", err)
	}
	return quiz, nil
}

// loadManagedQuiz loads a quiz the caller may change: its instructor or an admin
func (s *quizService) loadManagedQuiz(ctx context.Context, caller CallerContext, quizID uint) (*models.Quiz, error) {
	if !caller.Role.CanManageQuizzes() {
		return nil, ErrForbidden
	}
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if caller.Role != models.RoleAdmin && quiz.InstructorID != caller.StudentID {
		return nil, ErrForbidden
	}
	return quiz, nil
}
