package models

import "time"

// ClassSection represents a teaching group for one subject within a grade level and section.
type ClassSection struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	TeacherID    *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	GradeID      string    `db:"grade_id" json:"grade_id"`
	SectionID    string    `db:"section_id" json:"section_id"`
	Capacity     int       `db:"capacity" json:"capacity"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Placement returns the (grade, section) pair the class is taught to.
func (c ClassSection) Placement() Placement {
	return Placement{GradeID: c.GradeID, SectionID: c.SectionID}
}

// Placement identifies a grade level and section pair shared by students and classes.
type Placement struct {
	GradeID   string `json:"grade_id"`
	SectionID string `json:"section_id"`
}
