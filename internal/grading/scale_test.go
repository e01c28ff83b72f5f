package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-academic-api/internal/models"
)

func TestScale100Letters(t *testing.T) {
	cases := map[float64]string{100: "A", 90: "A", 89.99: "B", 80: "B", 75: "C", 60: "D", 59.5: "F", 0: "F"}
	for score, want := range cases {
		assert.Equal(t, want, Scale100.Letter(score), "score %v", score)
	}
}

func TestScale20LettersNeverFail(t *testing.T) {
	cases := map[float64]string{20: "A", 18: "A", 17: "B", 15: "B", 14.5: "C", 11: "C", 10.9: "D", 9: "D", 0: "D"}
	for score, want := range cases {
		assert.Equal(t, want, Scale20.Letter(score), "score %v", score)
	}
}

func TestRegistryUnknownCeilingNormalises(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, "A", r.Letter(9, 10))
	assert.Equal(t, "F", r.Letter(5, 10))
	assert.Equal(t, "D", r.Letter(9, 20))
}

func TestApplyDerivesFields(t *testing.T) {
	r := NewRegistry()
	period := models.AcademicPeriod{MaxGrade: 20}

	g := models.Grade{Score: 18, MaxScore: 20}
	r.Apply(&g, period)
	assert.Equal(t, 90.0, g.Percentage)
	assert.Equal(t, "A", g.LetterGrade)

	g = models.Grade{Score: 9, MaxScore: 20}
	r.Apply(&g, period)
	assert.Equal(t, 45.0, g.Percentage)
	assert.Equal(t, "D", g.LetterGrade)
}

func TestCheckRange(t *testing.T) {
	assert.NoError(t, CheckRange(0, 20))
	assert.NoError(t, CheckRange(20, 20))
	assert.Error(t, CheckRange(20.5, 20))
	assert.Error(t, CheckRange(-1, 100))
}

func TestCheckScoreBoundsByMaxScore(t *testing.T) {
	assert.NoError(t, CheckScore(10, 10, 20))
	assert.Error(t, CheckScore(20, 0.01, 20))
	assert.Error(t, CheckScore(5, 0, 20))
	assert.Error(t, CheckScore(21, 50, 20))
	assert.LessOrEqual(t, Percentage(10, 10), 100.0)
}

func TestPercentageKeepsColumnPrecision(t *testing.T) {
	assert.Equal(t, 66.67, Percentage(2, 3))
	assert.Equal(t, 90.0, Percentage(18, 20))
	assert.Equal(t, 0.0, Percentage(5, 0))
}

func TestStats(t *testing.T) {
	grades := []models.Grade{
		{Score: 18, Percentage: 90, LetterGrade: "A"},
		{Score: 9, Percentage: 45, LetterGrade: "D"},
		{Score: 12, Percentage: 60, LetterGrade: "C"},
	}
	stats := Stats(grades, 10)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 65.0, stats.AveragePercentage)
	require.NotNil(t, stats.MinScore)
	assert.Equal(t, 9.0, *stats.MinScore)
	assert.Equal(t, 18.0, *stats.MaxScore)
	assert.Equal(t, 2, stats.Passing)
	assert.Equal(t, map[string]int{"A": 1, "C": 1, "D": 1}, stats.Letters)

	empty := Stats(nil, 10)
	assert.Zero(t, empty.Count)
	assert.Nil(t, empty.MinScore)
}
