package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is one student's mark for a class on a date.
type AttendanceRecord struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	ClassID    string           `db:"class_id" json:"class_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Notes      *string          `db:"notes" json:"notes,omitempty"`
	RecordedBy *string          `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// AttendanceCounts tallies records per status.
type AttendanceCounts struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Excused int `json:"excused"`
	Total   int `json:"total"`
}

// Add counts one record with the given status.
func (c *AttendanceCounts) Add(status AttendanceStatus, n int) {
	switch status {
	case AttendanceStatusPresent:
		c.Present += n
	case AttendanceStatusAbsent:
		c.Absent += n
	case AttendanceStatusLate:
		c.Late += n
	case AttendanceStatusExcused:
		c.Excused += n
	default:
		return
	}
	c.Total += n
}

// AttendanceSummary is the derived view over the attendance set of one class and date.
type AttendanceSummary struct {
	ClassID string             `json:"class_id"`
	Date    string             `json:"date"`
	Counts  AttendanceCounts   `json:"counts"`
	Records []AttendanceRecord `json:"records"`
}

// SummarizeAttendance derives the status counts for records. It never touches storage.
func SummarizeAttendance(classID string, date time.Time, records []AttendanceRecord) AttendanceSummary {
	summary := AttendanceSummary{ClassID: classID, Date: date.Format(DateLayout), Records: records}
	if summary.Records == nil {
		summary.Records = []AttendanceRecord{}
	}
	for _, rec := range records {
		summary.Counts.Add(rec.Status, 1)
	}
	return summary
}

// AttendanceRate reports how often a student attended a class. Late counts as attended.
type AttendanceRate struct {
	StudentID string           `json:"student_id"`
	ClassID   string           `json:"class_id"`
	Counts    AttendanceCounts `json:"counts"`
	Rate      float64          `json:"rate"`
}

// DateLayout is the calendar date format used by attendance keys.
const DateLayout = "2006-01-02"
