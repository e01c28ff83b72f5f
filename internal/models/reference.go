package models

// EntityKind names a referenced entity family.
type EntityKind string

const (
	EntityGradeLevel     EntityKind = "grade_level"
	EntitySection        EntityKind = "section"
	EntityTeacher        EntityKind = "teacher"
	EntitySubject        EntityKind = "subject"
	EntityStudent        EntityKind = "student"
	EntityClass          EntityKind = "class"
	EntityAcademicPeriod EntityKind = "academic_period"
)

// EntityRef points at one row of an entity family.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

// Ref builds an EntityRef.
func Ref(kind EntityKind, id string) EntityRef {
	return EntityRef{Kind: kind, ID: id}
}

// ReferenceStatus is the existence/activity state of a referenced row.
type ReferenceStatus struct {
	ID     string `db:"id"`
	Active bool   `db:"active"`
}

// Reasons reported on a ReferenceIssue.
const (
	IssueNotFound    = "NOT_FOUND"
	IssueInactive    = "INACTIVE"
	IssueNotEnrolled = "NOT_ENROLLED"
	IssueDuplicate   = "DUPLICATE"
	IssueInvalid     = "INVALID"
	IssueOverlap     = "OVERLAP"
	IssueOutOfRange  = "OUT_OF_RANGE"
)

// ReferenceIssue explains why one reference or descriptor was rejected.
// Index is the descriptor position in the submitted set, -1 for top-level references.
type ReferenceIssue struct {
	Index  int        `json:"index"`
	Field  string     `json:"field,omitempty"`
	Entity EntityKind `json:"entity,omitempty"`
	ID     string     `json:"id,omitempty"`
	Reason string     `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}
