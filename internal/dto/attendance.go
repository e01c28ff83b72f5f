package dto

import "github.com/noah-isme/sma-academic-api/internal/models"

// AttendanceEntry is one desired attendance mark.
type AttendanceEntry struct {
	StudentID string                  `json:"studentId" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
	Notes     *string                 `json:"notes" validate:"omitempty,max=500"`
}

// ReconcileAttendanceRequest replaces the full attendance set of a class for one date.
// An empty date means today.
type ReconcileAttendanceRequest struct {
	ClassID    string            `json:"classId" validate:"required"`
	Date       string            `json:"date" validate:"omitempty,datetime=2006-01-02"`
	RecordedBy *string           `json:"recordedBy"`
	Entries    []AttendanceEntry `json:"entries" validate:"dive"`
}
