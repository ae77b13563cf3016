package services

import (
	"context"
	"log/slog"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"github.com/SAP-F-2025/quiz-engine/internal/validator"
)

// gradingService layers manual marking on top of closed attempts. Every change appends a
// new grade version; CloseAttempt's version 1 is never rewritten.
type gradingService struct {
	repo       repositories.Repository
	clock      Clock
	notifier   NotificationEventService
	validator  *validator.Validator
	grader     AnswerGrader
	aggregator *ScoreAggregator
	locks      *keyedLocks
	logger     *slog.Logger
	log        *ServiceLogger
}

func NewGradingService(repo repositories.Repository, clock Clock, notifier NotificationEventService, v *validator.Validator, scheme models.GradingSchemeType, logger *slog.Logger) GradingService {
	return &gradingService{
		repo:       repo,
		clock:      clock,
		notifier:   notifier,
		validator:  v,
		aggregator: NewScoreAggregator(scheme),
		locks:      newKeyedLocks(),
		logger:     logger,
		log:        NewServiceLogger(logger, LogConfig{Service: "quiz-engine", Component: "grading"}),
	}
}

// OverrideAnswer records a grader's marks for one answer and regrades its attempt
func (s *gradingService) OverrideAnswer(ctx context.Context, caller CallerContext, answerID uint, req *OverrideRequest) (*RegradeResult, error) {
	op := s.log.WithOperation(ctx, "override_answer", caller.StudentID)
	result, err := s.overrideAnswer(ctx, caller, answerID, req)
	op.LogResult(answerID, "answer", err)
	return result, err
}

func (s *gradingService) overrideAnswer(ctx context.Context, caller CallerContext, answerID uint, req *OverrideRequest) (*RegradeResult, error) {
	if !caller.Role.CanGrade() {
		return nil, ErrForbidden
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	answer, err := s.repo.Answer().GetAnswer(ctx, answerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAnswerNotFound
		}
		return nil, collaboratorFailure("answer_repository", "get_answer", err)
	}

	unlock := s.locks.Lock(attemptLockKey(answer.AttemptID))
	defer unlock()

	attempt, quiz, questions, err := s.loadClosedAttempt(ctx, answer.AttemptID)
	if err != nil {
		return nil, err
	}

	var question *models.Question
	for _, q := range questions {
		if q.ID == answer.QuestionID {
			question = q
			break
		}
	}
	if question == nil {
		return nil, &DataIntegrityError{Entity: "answer", ID: answerID, Reason: "question no longer belongs to the quiz"}
	}
	if req.Marks > question.Marks {
		return nil, NewValidationError("marks", "must not exceed the question's marks", req.Marks)
	}

	now := s.clock.Now()
	graderID := caller.StudentID
	correct := req.Marks >= question.Marks
	answer.Marks = req.Marks
	answer.IsCorrect = &correct
	answer.GradedBy = &graderID
	answer.GradedAt = &now
	answer.Feedback = req.Feedback

	var result *RegradeResult
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Answer().UpdateAnswer(ctx, answer); err != nil {
			return err
		}
		result, err = s.regrade(ctx, tx, attempt, quiz, graderID)
		return err
	})
	if err != nil {
		return nil, s.mapRegradeError(err)
	}
	result.Answer = answer

	s.notifier.PublishAttemptGraded(ctx, result.Grade, now)
	return result, nil
}

// RegradeAttempt re-scores auto-gradable answers against the current answer key,
// keeps manual overrides, and writes a new grade version
func (s *gradingService) RegradeAttempt(ctx context.Context, caller CallerContext, attemptID uint) (*RegradeResult, error) {
	op := s.log.WithOperation(ctx, "regrade_attempt", caller.StudentID)
	result, err := s.regradeAttempt(ctx, caller, attemptID)
	op.LogResult(attemptID, "attempt", err)
	return result, err
}

func (s *gradingService) regradeAttempt(ctx context.Context, caller CallerContext, attemptID uint) (*RegradeResult, error) {
	if !caller.Role.CanGrade() {
		return nil, ErrForbidden
	}

	unlock := s.locks.Lock(attemptLockKey(attemptID))
	defer unlock()

	attempt, quiz, questions, err := s.loadClosedAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	var result *RegradeResult
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		answers, err := tx.Answer().ListAnswers(ctx, attemptID)
		if err != nil {
			return err
		}
		for _, answer := range answers {
			question, ok := byID[answer.QuestionID]
			if !ok || answer.GradedBy != nil || !question.Type.IsAutoGradable() {
				continue
			}
			outcome := s.grader.Grade(question, answer.Answer)
			answer.IsCorrect = outcome.IsCorrect
			answer.Marks = outcome.Marks
			if err := tx.Answer().UpdateAnswer(ctx, answer); err != nil {
				return err
			}
		}
		result, err = s.regrade(ctx, tx, attempt, quiz, caller.StudentID)
		return err
	})
	if err != nil {
		return nil, s.mapRegradeError(err)
	}

	s.notifier.PublishAttemptGraded(ctx, result.Grade, s.clock.Now())
	return result, nil
}

// regrade aggregates the stored answers and appends the next grade version inside tx
func (s *gradingService) regrade(ctx context.Context, tx repositories.Repository, attempt *models.Attempt, quiz *models.Quiz, graderID string) (*RegradeResult, error) {
	answers, err := tx.Answer().ListAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	result, err := s.aggregator.Aggregate(answers, quiz)
	if err != nil {
		return nil, err
	}

	version := 1
	published := false
	previous, err := tx.Grade().GetLatestGrade(ctx, attempt.ID)
	switch {
	case err == nil:
		version = previous.Version + 1
		published = previous.IsPublished
	case !repositories.IsNotFoundError(err):
		return nil, err
	}

	if err := tx.Grade().SupersedeGrades(ctx, attempt.ID); err != nil {
		return nil, err
	}
	// A released grade stays released across versions
	grade := newGrade(attempt, result, version, &graderID)
	grade.IsPublished = published
	if err := tx.Grade().CreateGrade(ctx, grade); err != nil {
		return nil, err
	}

	attempt.Score = &result.Score
	attempt.IsPassed = &result.IsPassed
	if err := tx.Attempt().UpdateAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	s.logger.Info("Attempt regraded",
		"attempt_id", attempt.ID,
		"version", version,
		"score", result.Score,
		"grader_id", graderID)

	return &RegradeResult{Attempt: attempt, Result: result, Grade: grade}, nil
}

func (s *gradingService) PublishGrades(ctx context.Context, caller CallerContext, quizID uint) (int64, error) {
	op := s.log.WithOperation(ctx, "publish_grades", caller.StudentID)
	count, err := s.publishGrades(ctx, caller, quizID)
	op.LogResult(quizID, "quiz", err)
	return count, err
}

func (s *gradingService) publishGrades(ctx context.Context, caller CallerContext, quizID uint) (int64, error) {
	quiz, err := s.loadGradableQuiz(ctx, caller, quizID)
	if err != nil {
		return 0, err
	}

	count, err := s.repo.Grade().PublishGrades(ctx, quizID)
	if err != nil {
		return 0, collaboratorFailure("grade_repository", "publish_grades", err)
	}

	s.notifier.PublishGradesPublished(ctx, quiz, count, s.clock.Now())
	return count, nil
}

func (s *gradingService) GetGrades(ctx context.Context, caller CallerContext, quizID uint) (*GradeReport, error) {
	if _, err := s.loadGradableQuiz(ctx, caller, quizID); err != nil {
		return nil, err
	}

	grades, err := s.repo.Grade().ListGradesByQuiz(ctx, quizID)
	if err != nil {
		return nil, collaboratorFailure("grade_repository", "list_grades_by_quiz", err)
	}
	return &GradeReport{
		Grades: grades,
		Stats:  repositories.ComputeGradeStats(quizID, grades),
	}, nil
}

// ===== HELPER FUNCTIONS =====

func (s *gradingService) loadGradableQuiz(ctx context.Context, caller CallerContext, quizID uint) (*models.Quiz, error) {
	if !caller.Role.CanGrade() {
		return nil, ErrForbidden
	}
	quiz, err := s.repo.Quiz().GetQuiz(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, collaboratorFailure("quiz_repository", "get_quiz", err)
	}
	return quiz, nil
}

func (s *gradingService) loadClosedAttempt(ctx context.Context, attemptID uint) (*models.Attempt, *models.Quiz, []*models.Question, error) {
	attempt, err := s.repo.Attempt().GetAttempt(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, nil, ErrAttemptNotFound
		}
		return nil, nil, nil, collaboratorFailure("attempt_repository", "get_attempt", err)
	}
	if !attempt.IsCompleted {
		return nil, nil, nil, ErrAttemptNotClosed
	}

	quiz, err := s.repo.Quiz().GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, nil, ErrQuizNotFound
		}
		return nil, nil, nil, collaboratorFailure("quiz_repository", "get_quiz", err)
	}
	questions, err := s.repo.Quiz().GetQuestions(ctx, attempt.QuizID)
	if err != nil {
		return nil, nil, nil, collaboratorFailure("quiz_repository", "get_questions", err)
	}
	return attempt, quiz, questions, nil
}

func (s *gradingService) mapRegradeError(err error) error {
	if IsDataIntegrity(err) {
		return err
	}
	return collaboratorFailure("grade_repository", "regrade", err)
}
