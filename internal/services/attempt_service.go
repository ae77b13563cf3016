package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

// AttemptConfig tunes the attempt service
type AttemptConfig struct {
	// Upper bound for one operation's collaborator calls
	CollaboratorTimeout time.Duration
	GradeScheme         models.GradingSchemeType
}

type attemptService struct {
	repo       repositories.Repository
	clock      Clock
	notifier   NotificationEventService
	locker     Locker
	locks      *keyedLocks
	grader     AnswerGrader
	aggregator *ScoreAggregator
	logger     *slog.Logger
	log        *ServiceLogger
	config     AttemptConfig
}

// NewAttemptService wires the attempt manager. locker may be nil for single-instance deployments.
func NewAttemptService(repo repositories.Repository, clock Clock, notifier NotificationEventService, locker Locker, logger *slog.Logger, config AttemptConfig) AttemptService {
	return &attemptService{
		repo:       repo,
		clock:      clock,
		notifier:   notifier,
		locker:     locker,
		locks:      newKeyedLocks(),
		aggregator: NewScoreAggregator(config.GradeScheme),
		logger:     logger,
		log:        NewServiceLogger(logger, LogConfig{Service: "quiz-engine", Component: "attempt"}),
		config:     config,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) StartAttempt(ctx context.Context, caller CallerContext, quizID uint) (*StartAttemptResult, error) {
	op := s.log.WithOperation(ctx, "start_attempt", caller.StudentID)
	ctx, cancel := s.bound(ctx)
	defer cancel()

	result, err := s.startAttempt(ctx, caller, quizID)
	op.LogResult(quizID, "quiz", err)
	return result, err
}

func (s *attemptService) startAttempt(ctx context.Context, caller CallerContext, quizID uint) (*StartAttemptResult, error) {
	if caller.StudentID == "" {
		return nil, ErrUnauthorized
	}

	unlock, err := s.lockStart(ctx, quizID, caller.StudentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.resolveQuizStatus(ctx, quiz, now); err != nil {
		return nil, err
	}
	if !CanStart(quiz, now) {
		return nil, ErrWindowClosed
	}

	result := &StartAttemptResult{}

	open, err := s.repo.Attempt().FindOpenAttempt(ctx, quizID, caller.StudentID)
	if err != nil {
		return nil, collaboratorFailure("attempt_repository", "find_open_attempt", err)
	}
	if open != nil {
		if !overdue(open, quiz, now) {
			return nil, &AttemptInProgressError{AttemptID: open.ID}
		}
		s.logger.Info("Force-closing overrun attempt before start",
			"attempt_id", open.ID,
			"quiz_id", quizID,
			"student_id", caller.StudentID)
		closed, err := s.forceClose(ctx, open.ID, quiz, now)
		if err != nil {
			return nil, err
		}
		result.ClosedPrevious = closed
	}

	count, err := s.repo.Attempt().CountAttempts(ctx, quizID, caller.StudentID)
	if err != nil {
		return nil, collaboratorFailure("attempt_repository", "count_attempts", err)
	}
	if count >= quiz.MaxAttempts {
		return nil, ErrMaxAttemptsReached
	}

	attempt := &models.Attempt{
		QuizID:      quizID,
		StudentID:   caller.StudentID,
		StartedAt:   now,
		ShuffleSeed: Seed(quizID, caller.StudentID, count+1),
	}
	if err := s.repo.Attempt().CreateAttempt(ctx, attempt, quiz.MaxAttempts); err != nil {
		return nil, mapCreateAttemptError(err)
	}

	// Another instance may have inserted between our count and the conditional insert
	if seed := Seed(quizID, caller.StudentID, attempt.AttemptNumber); seed != attempt.ShuffleSeed {
		attempt.ShuffleSeed = seed
		if err := s.repo.Attempt().UpdateAttempt(ctx, attempt); err != nil {
			return nil, collaboratorFailure("attempt_repository", "update_attempt", err)
		}
	}

	questions, err := s.loadQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}

	result.Attempt = attempt
	result.Questions = Render(questions, attempt.ShuffleSeed, quiz.ShuffleQuestions, quiz.ShuffleOptions)

	s.notifier.PublishAttemptStarted(ctx, attempt, quiz)

	s.logger.Info("Quiz attempt started",
		"attempt_id", attempt.ID,
		"quiz_id", quizID,
		"student_id", caller.StudentID,
		"attempt_number", attempt.AttemptNumber)

	return result, nil
}

func (s *attemptService) ResumeAttempt(ctx context.Context, caller CallerContext, attemptID uint) (*StartAttemptResult, error) {
	op := s.log.WithOperation(ctx, "resume_attempt", caller.StudentID)
	ctx, cancel := s.bound(ctx)
	defer cancel()

	result, err := s.resumeAttempt(ctx, caller, attemptID)
	op.LogResult(attemptID, "attempt", err)
	return result, err
}

func (s *attemptService) resumeAttempt(ctx context.Context, caller CallerContext, attemptID uint) (*StartAttemptResult, error) {
	attempt, quiz, err := s.loadOwnedOpenAttempt(ctx, caller, attemptID)
	if err != nil {
		return nil, err
	}
	if now := s.clock.Now(); overdue(attempt, quiz, now) {
		if _, err := s.forceClose(ctx, attemptID, quiz, now); err != nil {
			return nil, err
		}
		return nil, ErrAttemptAlreadyClosed
	}

	questions, err := s.loadQuestions(ctx, quiz.ID)
	if err != nil {
		return nil, err
	}

	return &StartAttemptResult{
		Attempt:   attempt,
		Questions: Render(questions, attempt.ShuffleSeed, quiz.ShuffleQuestions, quiz.ShuffleOptions),
	}, nil
}

func (s *attemptService) SubmitAnswer(ctx context.Context, caller CallerContext, attemptID, questionID uint, rawAnswer string) (*AnswerAck, error) {
	op := s.log.WithOperation(ctx, "submit_answer", caller.StudentID)
	ctx, cancel := s.bound(ctx)
	defer cancel()

	acks, err := s.submitAnswers(ctx, caller, attemptID, []AnswerInput{{QuestionID: questionID, Answer: rawAnswer}})
	op.LogResult(attemptID, "attempt", err)
	if err != nil {
		return nil, err
	}
	return &acks[0], nil
}

func (s *attemptService) SubmitAnswers(ctx context.Context, caller CallerContext, attemptID uint, answers []AnswerInput) ([]AnswerAck, error) {
	op := s.log.WithOperation(ctx, "submit_answers", caller.StudentID)
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var (
		acks []AnswerAck
		err  error
	)
	if len(answers) == 0 {
		err = NewValidationError("answers", "at least one answer is required", nil)
	} else {
		acks, err = s.submitAnswers(ctx, caller, attemptID, answers)
	}
	op.LogResult(attemptID, "attempt", err)
	return acks, err
}

func (s *attemptService) submitAnswers(ctx context.Context, caller CallerContext, attemptID uint, inputs []AnswerInput) ([]AnswerAck, error) {
	for i, input := range inputs {
		if input.QuestionID == 0 {
			return nil, NewValidationError(fmt.Sprintf("answers[%d].question_id", i), "question_id is required", input.QuestionID)
		}
	}

	// Shared lock: answers to different questions proceed in parallel, closing waits for them
	unlock := s.locks.RLock(attemptLockKey(attemptID))
	attempt, quiz, err := s.loadOwnedOpenAttempt(ctx, caller, attemptID)
	if err != nil {
		unlock()
		return nil, err
	}

	now := s.clock.Now()
	if overdue(attempt, quiz, now) {
		unlock()
		if _, err := s.forceClose(ctx, attemptID, quiz, now); err != nil {
			return nil, err
		}
		return nil, ErrAttemptAlreadyClosed
	}
	defer unlock()

	questions, err := s.loadQuestions(ctx, quiz.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	answers := make([]*models.Answer, len(inputs))
	acks := make([]AnswerAck, len(inputs))
	for i, input := range inputs {
		question, ok := byID[input.QuestionID]
		if !ok {
			return nil, fmt.Errorf("question %d in quiz %d: %w", input.QuestionID, quiz.ID, ErrQuestionNotFound)
		}

		outcome := s.grader.Grade(question, input.Answer)
		answers[i] = &models.Answer{
			AttemptID:  attemptID,
			QuestionID: question.ID,
			Answer:     input.Answer,
			IsCorrect:  outcome.IsCorrect,
			Marks:      outcome.Marks,
			AnsweredAt: now,
		}
		acks[i] = AnswerAck{
			AttemptID:  attemptID,
			QuestionID: question.ID,
			AnsweredAt: now,
			AutoGraded: outcome.IsCorrect != nil,
		}
	}

	if len(answers) == 1 {
		err = s.repo.Answer().UpsertAnswer(ctx, answers[0])
	} else {
		err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
			for _, answer := range answers {
				if err := tx.Answer().UpsertAnswer(ctx, answer); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err != nil {
		return nil, collaboratorFailure("answer_repository", "upsert_answer", err)
	}

	return acks, nil
}

func (s *attemptService) CloseAttempt(ctx context.Context, caller CallerContext, attemptID uint) (*AttemptResult, error) {
	op := s.log.WithOperation(ctx, "close_attempt", caller.StudentID)
	ctx, cancel := s.bound(ctx)
	defer cancel()

	result, err := s.closeAttempt(ctx, caller, attemptID)
	op.LogResult(attemptID, "attempt", err)
	return result, err
}

func (s *attemptService) closeAttempt(ctx context.Context, caller CallerContext, attemptID uint) (*AttemptResult, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !caller.owns(attempt.StudentID) && !caller.Role.CanGrade() {
		return nil, ErrForbidden
	}

	quiz, err := s.loadQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(attemptLockKey(attemptID))
	defer unlock()
	return s.closeLocked(ctx, attemptID, quiz, s.clock.Now())
}

func (s *attemptService) GetAttemptStatus(ctx context.Context, caller CallerContext, attemptID uint) (*AttemptStatus, error) {
	op := s.log.WithOperation(ctx, "get_attempt_status", caller.StudentID)
	ctx, cancel := s.bound(ctx)
	defer cancel()

	status, err := s.getAttemptStatus(ctx, caller, attemptID)
	op.LogResult(attemptID, "attempt", err)
	return status, err
}

func (s *attemptService) getAttemptStatus(ctx context.Context, caller CallerContext, attemptID uint) (*AttemptStatus, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !caller.canView(attempt.StudentID) {
		return nil, ErrForbidden
	}

	quiz, err := s.loadQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}

	status := &AttemptStatus{}
	now := s.clock.Now()
	if !attempt.IsCompleted && overdue(attempt, quiz, now) {
		closed, err := s.forceClose(ctx, attemptID, quiz, now)
		if err != nil {
			return nil, err
		}
		attempt = closed.Attempt
		status.ForcedOnAccess = true
	}
	status.Attempt = attempt

	answers, err := s.repo.Answer().ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, collaboratorFailure("answer_repository", "list_answers", err)
	}
	questions, err := s.loadQuestions(ctx, quiz.ID)
	if err != nil {
		return nil, err
	}
	status.AnsweredCount = len(answers)
	status.QuestionCount = len(questions)

	if deadline, limited := attempt.Deadline(quiz); limited {
		status.Deadline = &deadline
		if !attempt.IsCompleted {
			remaining := int64(deadline.Sub(now).Seconds())
			if remaining < 0 {
				remaining = 0
			}
			status.RemainingSecs = &remaining
		}
	}

	if attempt.IsCompleted {
		grade, err := s.repo.Grade().GetLatestGrade(ctx, attemptID)
		switch {
		case err == nil:
			status.Grade = grade
		case !repositories.IsNotFoundError(err):
			return nil, collaboratorFailure("grade_repository", "get_latest_grade", err)
		}
	}

	return status, nil
}

// ExpireOverdueAttempts is driven by the scheduler; per-attempt failures are collected and the sweep continues
func (s *attemptService) ExpireOverdueAttempts(ctx context.Context, now time.Time) (int, error) {
	listCtx, cancel := s.bound(ctx)
	overdueAttempts, err := s.repo.Attempt().ListOverdue(listCtx, now)
	cancel()
	if err != nil {
		return 0, collaboratorFailure("attempt_repository", "list_overdue", err)
	}

	var (
		closed int
		errs   []error
	)
	for _, attempt := range overdueAttempts {
		n, err := s.expireOne(ctx, attempt, now)
		if err != nil {
			s.logger.Warn("Failed to expire overdue attempt",
				"attempt_id", attempt.ID,
				"quiz_id", attempt.QuizID,
				"error", err)
			errs = append(errs, err)
			continue
		}
		closed += n
	}

	if closed > 0 {
		s.logger.Info("Expired overdue attempts", "count", closed)
	}
	return closed, errors.Join(errs...)
}

func (s *attemptService) expireOne(ctx context.Context, attempt *models.Attempt, now time.Time) (int, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	quiz, err := s.loadQuiz(ctx, attempt.QuizID)
	if err != nil {
		return 0, err
	}
	result, err := s.forceClose(ctx, attempt.ID, quiz, now)
	if err != nil {
		return 0, err
	}
	if result.AlreadyClosed {
		return 0, nil
	}
	return 1, nil
}
