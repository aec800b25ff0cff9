package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Date and time layouts used for slot and appointment columns.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Availability is a doctor-declared time window. A booked slot is held by
// exactly one scheduled appointment and is not offered to other patients.
// @Description Availability slot
type Availability struct {
	gorm.Model
	DoctorID  uint   `json:"doctor_id" gorm:"not null;uniqueIndex:idx_doctor_slot,priority:1" example:"1"`
	Date      string `json:"date" gorm:"type:varchar(10);not null;uniqueIndex:idx_doctor_slot,priority:2" example:"2024-06-01"`
	StartTime string `json:"start_time" gorm:"type:varchar(5);not null;uniqueIndex:idx_doctor_slot,priority:3" example:"09:00"`
	EndTime   string `json:"end_time" gorm:"type:varchar(5);not null" example:"09:30"`
	IsBooked  bool   `json:"is_booked" gorm:"not null;default:false;index"`
}

// Overlaps reports whether the slot intersects the [start, end) window on the same date.
func (a Availability) Overlaps(date, start, end string) bool {
	return a.Date == date && a.StartTime < end && start < a.EndTime
}

// ParseSlotWindow validates a date and HH:MM start/end pair and returns the
// times zero-padded, so stored windows compare and sort as text.
func ParseSlotWindow(date, start, end string) (string, string, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	s, err := time.Parse(TimeLayout, start)
	if err != nil {
		return "", "", fmt.Errorf("invalid start time %q, expected HH:MM", start)
	}
	e, err := time.Parse(TimeLayout, end)
	if err != nil {
		return "", "", fmt.Errorf("invalid end time %q, expected HH:MM", end)
	}
	if !s.Before(e) {
		return "", "", fmt.Errorf("start time must be before end time")
	}
	return s.Format(TimeLayout), e.Format(TimeLayout), nil
}

type CreateAvailabilityRequest struct {
	Date      string `json:"date" binding:"required" example:"2024-06-01"`
	StartTime string `json:"start_time" binding:"required" example:"09:00"`
	EndTime   string `json:"end_time" binding:"required" example:"09:30"`
}
