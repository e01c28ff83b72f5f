package models

import "time"

// Enrollment is the join row asserting a student belongs to a class section.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentSummary reports the outcome of a membership reconciliation.
type EnrollmentSummary struct {
	ParentID    string       `json:"parent_id"`
	Placement   *Placement   `json:"placement,omitempty"`
	Enrollments []Enrollment `json:"enrollments"`
	Added       []string     `json:"added"`
	Removed     []string     `json:"removed"`
	Total       int          `json:"total"`
}
