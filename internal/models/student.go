package models

import "time"

// Student represents a learner registered in the institution.
type Student struct {
	ID        string    `db:"id" json:"id"`
	NIS       string    `db:"nis" json:"nis"`
	FullName  string    `db:"full_name" json:"full_name"`
	GradeID   *string   `db:"grade_id" json:"grade_id,omitempty"`
	SectionID *string   `db:"section_id" json:"section_id,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Placement returns the current grade/section pair and whether the student has one.
func (s Student) Placement() (Placement, bool) {
	if s.GradeID == nil || s.SectionID == nil {
		return Placement{}, false
	}
	return Placement{GradeID: *s.GradeID, SectionID: *s.SectionID}, true
}
