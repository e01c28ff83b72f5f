// Package grading derives percentage, letter grade and summary statistics from raw scores.
package grading

import (
	"fmt"
	"math"
	"sort"

	"github.com/noah-isme/sma-academic-api/internal/models"
)

// Threshold maps a minimum score to a letter.
type Threshold struct {
	Min    float64
	Letter string
}

// Scale is an ordered threshold table for one grade ceiling.
type Scale struct {
	Max        float64
	Thresholds []Threshold
	Fallback   string
}

// The two tables are kept exactly as configured by the school. They do not agree on the
// failing cutoff: the 20-point table never emits F.
var (
	Scale100 = Scale{
		Max: 100,
		Thresholds: []Threshold{
			{Min: 90, Letter: "A"},
			{Min: 80, Letter: "B"},
			{Min: 70, Letter: "C"},
			{Min: 60, Letter: "D"},
		},
		Fallback: "F",
	}
	Scale20 = Scale{
		Max: 20,
		Thresholds: []Threshold{
			{Min: 18, Letter: "A"},
			{Min: 15, Letter: "B"},
			{Min: 11, Letter: "C"},
			{Min: 0, Letter: "D"},
		},
		Fallback: "F",
	}
)

// Letter returns the letter for score on this scale.
func (s Scale) Letter(score float64) string {
	for _, t := range s.Thresholds {
		if score >= t.Min {
			return t.Letter
		}
	}
	return s.Fallback
}

// Registry resolves the scale for a period's grade ceiling.
type Registry struct {
	scales map[float64]Scale
}

// NewRegistry builds a registry with the given scales; defaults to the 100- and 20-point tables.
func NewRegistry(scales ...Scale) *Registry {
	if len(scales) == 0 {
		scales = []Scale{Scale100, Scale20}
	}
	r := &Registry{scales: make(map[float64]Scale, len(scales))}
	for _, s := range scales {
		r.scales[s.Max] = s
	}
	return r
}

// Letter derives the letter grade of score for a period whose ceiling is maxGrade.
// Ceilings without their own table are graded on the 100-point table after normalising.
func (r *Registry) Letter(score, maxGrade float64) string {
	if s, ok := r.scales[maxGrade]; ok {
		return s.Letter(score)
	}
	if maxGrade <= 0 {
		return Scale100.Fallback
	}
	return Scale100.Letter(100 * score / maxGrade)
}

// CheckRange validates 0 <= score <= maxGrade.
func CheckRange(score, maxGrade float64) error {
	if math.IsNaN(score) || score < 0 || score > maxGrade {
		return fmt.Errorf("score %g outside [0, %g]", score, maxGrade)
	}
	return nil
}

// CheckScore applies CheckRange and also bounds score by the assessment's maxScore,
// so the derived percentage never exceeds 100.
func CheckScore(score, maxScore, maxGrade float64) error {
	if err := CheckRange(score, maxGrade); err != nil {
		return err
	}
	if math.IsNaN(maxScore) || maxScore <= 0 {
		return fmt.Errorf("maxScore %g must be positive", maxScore)
	}
	if score > maxScore {
		return fmt.Errorf("score %g exceeds maxScore %g", score, maxScore)
	}
	return nil
}

// Percentage returns 100 * score / maxScore rounded to two decimals, the precision of the
// stored percentage column.
func Percentage(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return math.Round(100*score/maxScore*100) / 100
}

// Apply recomputes the derived fields of g for the period.
func (r *Registry) Apply(g *models.Grade, period models.AcademicPeriod) {
	g.Percentage = Percentage(g.Score, g.MaxScore)
	g.LetterGrade = r.Letter(g.Score, period.MaxGrade)
}

// Stats summarises grades; passing uses the period's minimum passing grade on the raw score.
func Stats(grades []models.Grade, minPassing float64) models.GradeStats {
	stats := models.GradeStats{Letters: map[string]int{}}
	if len(grades) == 0 {
		return stats
	}
	var sum float64
	minScore, maxScore := math.Inf(1), math.Inf(-1)
	for _, g := range grades {
		stats.Count++
		sum += g.Percentage
		minScore = math.Min(minScore, g.Score)
		maxScore = math.Max(maxScore, g.Score)
		if g.Score >= minPassing {
			stats.Passing++
		}
		stats.Letters[g.LetterGrade]++
	}
	stats.AveragePercentage = math.Round(sum/float64(stats.Count)*100) / 100
	stats.MinScore = &minScore
	stats.MaxScore = &maxScore
	return stats
}

// SortGrades orders grades by student then grade type for stable sheets.
func SortGrades(grades []models.Grade) {
	sort.SliceStable(grades, func(i, j int) bool {
		if grades[i].StudentID != grades[j].StudentID {
			return grades[i].StudentID < grades[j].StudentID
		}
		return grades[i].GradeType < grades[j].GradeType
	})
}
