package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

func TestScoreAggregator_ScoringExample(t *testing.T) {
	quiz := &models.Quiz{ID: 1, TotalMarks: 10, PassingMarks: floatPtr(5)}
	answers := []*models.Answer{
		{QuestionID: 1, Marks: 5, IsCorrect: boolPtr(true)},
		{QuestionID: 2, Marks: 5, IsCorrect: boolPtr(true)},
	}

	result, err := NewScoreAggregator(models.GradingPassFail).Aggregate(answers, quiz)
	require.NoError(t, err)

	assert.Equal(t, 10.0, result.Score)
	assert.Equal(t, 100.0, result.Percentage)
	assert.True(t, result.IsPassed)
	assert.Equal(t, models.GradePass, result.Grade)
	assert.Zero(t, result.PendingReview)
}

func TestScoreAggregator_TotalMarksZero(t *testing.T) {
	for _, total := range []float64{0, -5} {
		quiz := &models.Quiz{ID: 4, TotalMarks: total}
		result, err := NewScoreAggregator("").Aggregate([]*models.Answer{{Marks: 1}}, quiz)

		require.Error(t, err)
		assert.True(t, IsDataIntegrity(err))
		assert.False(t, math.IsNaN(result.Percentage))
		assert.False(t, math.IsInf(result.Percentage, 0))
	}
}

func TestScoreAggregator_PassingMarks(t *testing.T) {
	aggregator := NewScoreAggregator(models.GradingPassFail)
	answers := []*models.Answer{{Marks: 4}}

	noThreshold, err := aggregator.Aggregate(answers, &models.Quiz{TotalMarks: 10})
	require.NoError(t, err)
	assert.True(t, noThreshold.IsPassed)

	failed, err := aggregator.Aggregate(answers, &models.Quiz{TotalMarks: 10, PassingMarks: floatPtr(5)})
	require.NoError(t, err)
	assert.False(t, failed.IsPassed)
	assert.Equal(t, models.GradeFail, failed.Grade)

	exact, err := aggregator.Aggregate(answers, &models.Quiz{TotalMarks: 10, PassingMarks: floatPtr(4)})
	require.NoError(t, err)
	assert.True(t, exact.IsPassed)
}

func TestScoreAggregator_PendingReview(t *testing.T) {
	grader := "teacher-1"
	answers := []*models.Answer{
		{Marks: 3, IsCorrect: boolPtr(true)},
		{Marks: 0},
		{Marks: 4, GradedBy: &grader},
	}

	result, err := NewScoreAggregator("").Aggregate(answers, &models.Quiz{TotalMarks: 20})
	require.NoError(t, err)
	assert.Equal(t, 7.0, result.Score)
	assert.Equal(t, 1, result.PendingReview)
}

func TestScoreAggregator_LetterBands(t *testing.T) {
	aggregator := NewScoreAggregator(models.GradingLetter)

	cases := map[float64]string{
		100:   "A",
		90:    "A",
		89.99: "B",
		80:    "B",
		75:    "C",
		60:    "D",
		59.9:  "F",
		0:     "F",
	}
	for pct, want := range cases {
		assert.Equal(t, want, aggregator.Band(pct, true), "percentage %v", pct)
	}
}
