package repositories

import "github.com/SAP-F-2025/quiz-engine/internal/models"

// ===== SHARED STATISTICS STRUCTS =====

type GradeStats struct {
	QuizID         uint    `json:"quiz_id"`
	GradedAttempts int     `json:"graded_attempts"`
	PassedCount    int     `json:"passed_count"`
	AverageMarks   float64 `json:"average_marks"`
	PassRate       float64 `json:"pass_rate"`
}

// ComputeGradeStats summarizes current grade versions for a quiz
func ComputeGradeStats(quizID uint, grades []*models.Grade) GradeStats {
	stats := GradeStats{QuizID: quizID, GradedAttempts: len(grades)}
	if len(grades) == 0 {
		return stats
	}

	var total float64
	for _, g := range grades {
		total += g.Marks
		if g.IsPassed {
			stats.PassedCount++
		}
	}
	stats.AverageMarks = total / float64(len(grades))
	stats.PassRate = float64(stats.PassedCount) / float64(len(grades)) * 100
	return stats
}
