package dto

// ReenrollStudentRequest moves a student to a new grade level and section.
type ReenrollStudentRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	GradeID   string `json:"gradeId" validate:"required"`
	SectionID string `json:"sectionId" validate:"required"`
}
