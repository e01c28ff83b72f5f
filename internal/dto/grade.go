package dto

// RecordGradeRequest upserts one grade addressed by its composite key.
type RecordGradeRequest struct {
	StudentID        string  `json:"studentId" validate:"required"`
	ClassID          string  `json:"classId" validate:"required"`
	AcademicPeriodID string  `json:"academicPeriodId" validate:"required"`
	GradeType        string  `json:"gradeType" validate:"required,max=50"`
	Score            float64 `json:"score"`
	MaxScore         float64 `json:"maxScore" validate:"gt=0"`
	Comments         *string `json:"comments" validate:"omitempty,max=1000"`
}

// GradeTuple is one entry of a batch grade submission.
type GradeTuple struct {
	StudentID string   `json:"studentId" validate:"required"`
	GradeType string   `json:"gradeType" validate:"required,max=50"`
	Score     float64  `json:"score"`
	MaxScore  *float64 `json:"maxScore" validate:"omitempty,gt=0"`
	Comments  *string  `json:"comments" validate:"omitempty,max=1000"`
}

// RecordGradesBatchRequest posts many grades for one class and period atomically.
// Tuples without maxScore use the period's maximum grade.
type RecordGradesBatchRequest struct {
	ClassID          string       `json:"classId" validate:"required"`
	AcademicPeriodID string       `json:"academicPeriodId" validate:"required"`
	Grades           []GradeTuple `json:"grades" validate:"required,min=1,dive"`
}
