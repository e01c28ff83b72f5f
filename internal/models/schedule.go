package models

import (
	"strings"
	"time"
)

// DayOfWeek enumerates teaching days.
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

var dayOrder = map[DayOfWeek]int{
	Monday: 1, Tuesday: 2, Wednesday: 3, Thursday: 4, Friday: 5, Saturday: 6, Sunday: 7,
}

// ParseDayOfWeek normalises case and reports whether raw names a day.
func ParseDayOfWeek(raw string) (DayOfWeek, bool) {
	day := DayOfWeek(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := dayOrder[day]
	return day, ok
}

// Index returns 1 for Monday through 7 for Sunday, 0 when unknown.
func (d DayOfWeek) Index() int {
	return dayOrder[d]
}

// AnchorClock keeps only the time of day of t, placed on 2000-01-01 UTC. Postgres TIME
// values decode on year 0, submitted values on the parse date.
func AnchorClock(t time.Time) time.Time {
	return time.Date(2000, time.January, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// ScheduleBlock is a weekly teaching slot of a class within an academic period.
type ScheduleBlock struct {
	ID               string    `db:"id" json:"id"`
	ClassID          string    `db:"class_id" json:"class_id"`
	AcademicPeriodID string    `db:"academic_period_id" json:"academic_period_id"`
	DayOfWeek        DayOfWeek `db:"day_of_week" json:"day_of_week"`
	StartTime        time.Time `db:"start_time" json:"start_time"`
	EndTime          time.Time `db:"end_time" json:"end_time"`
	Room             *string   `db:"room" json:"room,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Overlaps reports whether both blocks share a day and an open time interval.
func (b ScheduleBlock) Overlaps(other ScheduleBlock) bool {
	if b.DayOfWeek != other.DayOfWeek {
		return false
	}
	return b.StartTime.Before(other.EndTime) && other.StartTime.Before(b.EndTime)
}
