package services

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/quiz-engine/internal/errors"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")

	// Lookup errors
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAnswerNotFound   = errors.New("answer not found")
	ErrGradeNotFound    = errors.New("grade not found")

	// Attempt lifecycle errors
	ErrWindowClosed         = errors.New("quiz is not open for attempts")
	ErrMaxAttemptsReached   = errors.New("maximum attempts reached")
	ErrAttemptInProgress    = errors.New("an attempt is already in progress")
	ErrAttemptAlreadyClosed = errors.New("attempt already closed")
	ErrAttemptNotClosed     = errors.New("attempt is still open")

	// Quiz lifecycle errors
	ErrInvalidStatusTransition = errors.New("invalid quiz status transition")

	// Infrastructure
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// AttemptInProgressError carries the open attempt so the caller can resume it
type AttemptInProgressError struct {
	AttemptID uint `json:"attempt_id"`
}

func (e *AttemptInProgressError) Error() string {
	return fmt.Sprintf("attempt %d is already in progress", e.AttemptID)
}

func (e *AttemptInProgressError) Is(target error) bool {
	return target == ErrAttemptInProgress
}

// DataIntegrityError reports stored data that violates an engine invariant
type DataIntegrityError struct {
	Entity string `json:"entity"`
	ID     uint   `json:"id"`
	Reason string `json:"reason"`
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation on %s %d: %s", e.Entity, e.ID, e.Reason)
}

// CollaboratorError wraps a failed or timed out call to a repository, directory or sink
type CollaboratorError struct {
	Collaborator string
	Operation    string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s.%s failed: %v", e.Collaborator, e.Operation, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaboratorUnavailable
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) ValidationErrors {
	return ValidationErrors{*apperrors.NewValidationError(field, message, value)}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrAnswerNotFound) ||
		errors.Is(err, ErrGradeNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsConflict checks if error represents a state conflict with the stored attempt or quiz
func IsConflict(err error) bool {
	return errors.Is(err, ErrWindowClosed) ||
		errors.Is(err, ErrMaxAttemptsReached) ||
		errors.Is(err, ErrAttemptInProgress) ||
		errors.Is(err, ErrAttemptAlreadyClosed) ||
		errors.Is(err, ErrAttemptNotClosed) ||
		errors.Is(err, ErrInvalidStatusTransition)
}

// IsDataIntegrity checks if error represents corrupt stored data
func IsDataIntegrity(err error) bool {
	var die *DataIntegrityError
	return errors.As(err, &die)
}

// IsCollaboratorUnavailable checks if a dependency failed or timed out
func IsCollaboratorUnavailable(err error) bool {
	return errors.Is(err, ErrCollaboratorUnavailable)
}

// isClassified reports whether err already belongs to the engine's error vocabulary
func isClassified(err error) bool {
	return IsNotFound(err) ||
		IsUnauthorized(err) ||
		IsValidation(err) ||
		IsConflict(err) ||
		IsDataIntegrity(err) ||
		IsCollaboratorUnavailable(err) ||
		errors.Is(err, repositories.ErrNotFound) ||
		errors.Is(err, repositories.ErrDuplicate) ||
		errors.Is(err, repositories.ErrOpenAttemptExists) ||
		errors.Is(err, repositories.ErrAttemptLimitReached)
}

// collaboratorFailure wraps unexpected dependency errors; expected outcomes pass through
func collaboratorFailure(collaborator, operation string, err error) error {
	if err == nil || isClassified(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &CollaboratorError{Collaborator: collaborator, Operation: operation, Err: err}
}
