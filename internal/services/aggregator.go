package services

import (
	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

// Result is the aggregate outcome of a closed attempt
type Result struct {
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Percentage float64 `json:"percentage"`
	IsPassed   bool    `json:"is_passed"`
	Grade      string  `json:"grade"`
	// Answers still waiting for a human grader
	PendingReview int `json:"pending_review"`
}

// ScoreAggregator sums awarded marks and derives pass/fail and the categorical grade
type ScoreAggregator struct {
	scheme models.GradingSchemeType
	bands  []models.GradeRange
}

func NewScoreAggregator(scheme models.GradingSchemeType) *ScoreAggregator {
	if scheme == "" {
		scheme = models.GradingPassFail
	}
	return &ScoreAggregator{
		scheme: scheme,
		bands:  models.DefaultLetterBands,
	}
}

func (a *ScoreAggregator) Aggregate(answers []*models.Answer, quiz *models.Quiz) (Result, error) {
	if quiz.TotalMarks <= 0 {
		return Result{}, &DataIntegrityError{
			Entity: "quiz",
			ID:     quiz.ID,
			Reason: "total marks must be positive",
		}
	}

	var result Result
	for _, answer := range answers {
		result.Score += answer.Marks
		if answer.IsCorrect == nil && answer.GradedBy == nil {
			result.PendingReview++
		}
	}

	result.MaxScore = quiz.TotalMarks
	result.Percentage = result.Score / quiz.TotalMarks * 100
	result.IsPassed = quiz.PassingMarks == nil || result.Score >= *quiz.PassingMarks
	result.Grade = a.Band(result.Percentage, result.IsPassed)
	return result, nil
}

// Band maps a percentage onto the configured grading scheme
func (a *ScoreAggregator) Band(percentage float64, passed bool) string {
	if a.scheme != models.GradingLetter {
		if passed {
			return models.GradePass
		}
		return models.GradeFail
	}

	for _, band := range a.bands {
		if percentage >= band.MinScore {
			return band.Grade
		}
	}
	return a.bands[len(a.bands)-1].Grade
}
