package models

import "time"

// AcademicPeriodType represents the kind of grading window.
type AcademicPeriodType string

const (
	PeriodTypeSemester  AcademicPeriodType = "SEMESTER"
	PeriodTypeTrimester AcademicPeriodType = "TRIMESTER"
	PeriodTypeQuarter   AcademicPeriodType = "QUARTER"
)

// AcademicPeriod defines a grading window with its own grade ceiling and passing threshold.
type AcademicPeriod struct {
	ID              string             `db:"id" json:"id"`
	Name            string             `db:"name" json:"name"`
	Type            AcademicPeriodType `db:"type" json:"type"`
	StartDate       time.Time          `db:"start_date" json:"start_date"`
	EndDate         time.Time          `db:"end_date" json:"end_date"`
	MinPassingGrade float64            `db:"min_passing_grade" json:"min_passing_grade"`
	MaxGrade        float64            `db:"max_grade" json:"max_grade"`
	IsActive        bool               `db:"is_active" json:"is_active"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}
