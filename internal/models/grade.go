package models

import "time"

// Grade is a scored assessment of a student in a class for one period and grade type.
// Percentage and LetterGrade are derived on every write and never set by callers.
type Grade struct {
	ID               string    `db:"id" json:"id"`
	StudentID        string    `db:"student_id" json:"student_id"`
	ClassID          string    `db:"class_id" json:"class_id"`
	AcademicPeriodID string    `db:"academic_period_id" json:"academic_period_id"`
	GradeType        string    `db:"grade_type" json:"grade_type"`
	Score            float64   `db:"score" json:"score"`
	MaxScore         float64   `db:"max_score" json:"max_score"`
	Percentage       float64   `db:"percentage" json:"percentage"`
	LetterGrade      string    `db:"letter_grade" json:"letter_grade"`
	Comments         *string   `db:"comments" json:"comments,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// GradeKey is the composite identity of a grade row.
type GradeKey struct {
	StudentID        string
	ClassID          string
	AcademicPeriodID string
	GradeType        string
}

// Key returns the composite identity of g.
func (g Grade) Key() GradeKey {
	return GradeKey{StudentID: g.StudentID, ClassID: g.ClassID, AcademicPeriodID: g.AcademicPeriodID, GradeType: g.GradeType}
}

// GradeStats summarises a set of grades.
type GradeStats struct {
	Count             int            `json:"count"`
	AveragePercentage float64        `json:"average_percentage"`
	MinScore          *float64       `json:"min_score,omitempty"`
	MaxScore          *float64       `json:"max_score,omitempty"`
	Passing           int            `json:"passing"`
	Letters           map[string]int `json:"letters"`
}

// GradeSheet lists the grades of a class for one academic period.
type GradeSheet struct {
	ClassID          string     `json:"class_id"`
	AcademicPeriodID string     `json:"academic_period_id"`
	Grades           []Grade    `json:"grades"`
	Stats            GradeStats `json:"stats"`
}
