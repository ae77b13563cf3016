package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

// ===== HELPER FUNCTIONS =====

// bound applies the collaborator timeout to one operation
func (s *attemptService) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.CollaboratorTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.CollaboratorTimeout)
}

// lockStart serializes StartAttempt for one (quiz, student) in this process and, when configured, across instances
func (s *attemptService) lockStart(ctx context.Context, quizID uint, studentID string) (func(), error) {
	key := startLockKey(quizID, studentID)
	unlockLocal := s.locks.Lock(key)
	if s.locker == nil {
		return unlockLocal, nil
	}

	unlockRemote, err := s.locker.Lock(ctx, key)
	if err != nil {
		unlockLocal()
		return nil, collaboratorFailure("locker", "lock", err)
	}
	return func() {
		unlockRemote()
		unlockLocal()
	}, nil
}

func (s *attemptService) loadQuiz(ctx context.Context, quizID uint) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetQuiz(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, collaboratorFailure("quiz_repository", "get_quiz", err)
	}
	return quiz, nil
}

func (s *attemptService) loadQuestions(ctx context.Context, quizID uint) ([]*models.Question, error) {
	questions, err := s.repo.Quiz().GetQuestions(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, collaboratorFailure("quiz_repository", "get_questions", err)
	}
	return questions, nil
}

func (s *attemptService) loadAttempt(ctx context.Context, attemptID uint) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetAttempt(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, collaboratorFailure("attempt_repository", "get_attempt", err)
	}
	return attempt, nil
}

// loadOwnedOpenAttempt returns the caller's open attempt and its quiz. It does not check the time limit.
func (s *attemptService) loadOwnedOpenAttempt(ctx context.Context, caller CallerContext, attemptID uint) (*models.Attempt, *models.Quiz, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if !caller.owns(attempt.StudentID) {
		return nil, nil, ErrForbidden
	}
	if attempt.IsCompleted {
		return nil, nil, ErrAttemptAlreadyClosed
	}

	quiz, err := s.loadQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, quiz, nil
}

// resolveQuizStatus persists any automatic transition due at now and updates quiz in place
func (s *attemptService) resolveQuizStatus(ctx context.Context, quiz *models.Quiz, now time.Time) error {
	target := Resolve(quiz, now)
	if target == quiz.Status {
		return nil
	}

	if err := s.repo.Quiz().UpdateQuizStatus(ctx, quiz.ID, target); err != nil {
		return collaboratorFailure("quiz_repository", "update_quiz_status", err)
	}

	from := quiz.Status
	quiz.Status = target
	s.notifier.PublishQuizStatusChanged(ctx, quiz, from, now)

	s.logger.Info("Quiz status resolved",
		"quiz_id", quiz.ID,
		"from", from,
		"to", target)
	return nil
}

// overdue reports whether an open attempt has run past its enforced time limit
func overdue(attempt *models.Attempt, quiz *models.Quiz, now time.Time) bool {
	deadline, limited := attempt.Deadline(quiz)
	return limited && now.After(deadline)
}

func mapCreateAttemptError(err error) error {
	var open *repositories.OpenAttemptError
	switch {
	case errors.As(err, &open):
		return &AttemptInProgressError{AttemptID: open.AttemptID}
	case errors.Is(err, repositories.ErrAttemptLimitReached):
		return ErrMaxAttemptsReached
	case errors.Is(err, repositories.ErrDuplicate):
		return fmt.Errorf("concurrent attempt creation: %w", ErrAttemptInProgress)
	default:
		return collaboratorFailure("attempt_repository", "create_attempt", err)
	}
}

// forceClose takes the attempt lock and closes the attempt at its deadline
func (s *attemptService) forceClose(ctx context.Context, attemptID uint, quiz *models.Quiz, now time.Time) (*AttemptResult, error) {
	unlock := s.locks.Lock(attemptLockKey(attemptID))
	defer unlock()
	return s.closeLocked(ctx, attemptID, quiz, now)
}

// closeLocked closes the attempt and writes grade version 1. The caller holds the attempt lock.
// Closing an already closed attempt returns what was stored.
func (s *attemptService) closeLocked(ctx context.Context, attemptID uint, quiz *models.Quiz, now time.Time) (*AttemptResult, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.IsCompleted {
		return s.storedResult(ctx, attempt)
	}

	submittedAt := now
	forced := false
	if deadline, limited := attempt.Deadline(quiz); limited && now.After(deadline) {
		submittedAt = deadline
		forced = true
	}

	answers, err := s.repo.Answer().ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, collaboratorFailure("answer_repository", "list_answers", err)
	}
	counted := answers[:0:0]
	for _, answer := range answers {
		if !answer.AnsweredAt.After(submittedAt) {
			counted = append(counted, answer)
		}
	}

	result, err := s.aggregator.Aggregate(counted, quiz)
	if err != nil {
		return nil, err
	}

	attempt.SubmittedAt = &submittedAt
	attempt.IsCompleted = true
	attempt.TimeSpentMinutes = int(math.Round(submittedAt.Sub(attempt.StartedAt).Minutes()))
	attempt.Score = &result.Score
	attempt.IsPassed = &result.IsPassed
	attempt.Forced = forced

	grade := newGrade(attempt, result, 1, nil)

	completed := false
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		ok, err := tx.Attempt().CompleteAttempt(ctx, attempt)
		if err != nil {
			return err
		}
		completed = ok
		if !ok {
			return nil
		}
		if err := tx.Grade().CreateGrade(ctx, grade); err != nil && !errors.Is(err, repositories.ErrDuplicate) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, collaboratorFailure("attempt_repository", "complete_attempt", err)
	}

	if !completed {
		// Closed by another instance between our read and the conditional update
		current, err := s.loadAttempt(ctx, attemptID)
		if err != nil {
			return nil, err
		}
		return s.storedResult(ctx, current)
	}

	s.notifier.PublishAttemptSubmitted(ctx, attempt, result.PendingReview > 0)
	if result.PendingReview == 0 {
		s.notifier.PublishAttemptGraded(ctx, grade, now)
	}

	s.logger.Info("Quiz attempt closed",
		"attempt_id", attempt.ID,
		"quiz_id", attempt.QuizID,
		"student_id", attempt.StudentID,
		"score", result.Score,
		"passed", result.IsPassed,
		"forced", forced)

	return &AttemptResult{
		Attempt: attempt,
		Result:  result,
		Grade:   grade,
		Forced:  forced,
	}, nil
}

// storedResult rebuilds the result of a closed attempt from its latest grade
func (s *attemptService) storedResult(ctx context.Context, attempt *models.Attempt) (*AttemptResult, error) {
	grade, err := s.repo.Grade().GetLatestGrade(ctx, attempt.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, &DataIntegrityError{Entity: "attempt", ID: attempt.ID, Reason: "closed attempt has no grade"}
		}
		return nil, collaboratorFailure("grade_repository", "get_latest_grade", err)
	}

	answers, err := s.repo.Answer().ListAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, collaboratorFailure("answer_repository", "list_answers", err)
	}

	return &AttemptResult{
		Attempt:       attempt,
		Result:        resultFromGrade(grade, answers),
		Grade:         grade,
		Forced:        attempt.Forced,
		AlreadyClosed: true,
	}, nil
}

func newGrade(attempt *models.Attempt, result Result, version int, gradedBy *string) *models.Grade {
	return &models.Grade{
		AttemptID:  attempt.ID,
		QuizID:     attempt.QuizID,
		StudentID:  attempt.StudentID,
		Marks:      result.Score,
		MaxMarks:   result.MaxScore,
		Percentage: result.Percentage,
		Grade:      result.Grade,
		IsPassed:   result.IsPassed,
		Version:    version,
		GradedBy:   gradedBy,
	}
}

func resultFromGrade(grade *models.Grade, answers []*models.Answer) Result {
	result := Result{
		Score:      grade.Marks,
		MaxScore:   grade.MaxMarks,
		Percentage: grade.Percentage,
		IsPassed:   grade.IsPassed,
		Grade:      grade.Grade,
	}
	for _, answer := range answers {
		if answer.IsCorrect == nil && answer.GradedBy == nil {
			result.PendingReview++
		}
	}
	return result
}
