package dto

// ScheduleEntry is one desired weekly block. Times are HH:MM or HH:MM:SS.
type ScheduleEntry struct {
	DayOfWeek string  `json:"dayOfWeek" validate:"required"`
	StartTime string  `json:"startTime" validate:"required"`
	EndTime   string  `json:"endTime" validate:"required"`
	Room      *string `json:"room" validate:"omitempty,max=50"`
}

// ReplaceScheduleRequest replaces the weekly blocks of a class for the active period.
type ReplaceScheduleRequest struct {
	ClassID string          `json:"classId" validate:"required"`
	Blocks  []ScheduleEntry `json:"blocks" validate:"dive"`
}
