package repositories

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicate           = errors.New("duplicate record")
	ErrOpenAttemptExists   = errors.New("an open attempt already exists")
	ErrAttemptLimitReached = errors.New("attempt limit reached")
)

// OpenAttemptError is returned by CreateAttempt when the student already has an open attempt
type OpenAttemptError struct {
	AttemptID uint
}

func (e *OpenAttemptError) Error() string {
	return fmt.Sprintf("open attempt %d already exists", e.AttemptID)
}

func (e *OpenAttemptError) Is(target error) bool {
	return target == ErrOpenAttemptExists
}

// IsNotFoundError checks if error represents a missing record
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if error represents a unique constraint violation
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
