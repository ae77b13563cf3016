package services

import (
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

// CanStart reports whether a new attempt may begin at now.
// Both window bounds are inclusive.
func CanStart(quiz *models.Quiz, now time.Time) bool {
	if quiz.Status != models.QuizActive {
		return false
	}
	if quiz.StartTime != nil && now.Before(*quiz.StartTime) {
		return false
	}
	if quiz.EndTime != nil && now.After(*quiz.EndTime) {
		return false
	}
	return true
}

// Resolve returns the status the quiz should have at now.
// DRAFT and COMPLETED are terminal for automatic transitions.
func Resolve(quiz *models.Quiz, now time.Time) models.QuizStatus {
	status := quiz.Status

	if status == models.QuizScheduled && quiz.StartTime != nil && !now.Before(*quiz.StartTime) {
		status = models.QuizActive
	}
	if status == models.QuizActive && quiz.EndTime != nil && now.After(*quiz.EndTime) {
		status = models.QuizCompleted
	}
	return status
}

// validTransition lists the manual status changes the quiz service accepts
func validTransition(from, to models.QuizStatus) bool {
	switch from {
	case models.QuizDraft:
		return to == models.QuizScheduled || to == models.QuizActive
	case models.QuizScheduled:
		return to == models.QuizActive || to == models.QuizDraft
	case models.QuizActive:
		return to == models.QuizCompleted
	default:
		return false
	}
}
