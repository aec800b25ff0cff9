package model

import "gorm.io/gorm"

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

const DefaultAppointmentMode = "in-person"

// Appointment links a patient, doctor and department to a booked time window.
// AvailabilityID references the slot the appointment currently holds; it is
// nil for rows that never held a slot or whose slot has been released.
// @Description Appointment information
type Appointment struct {
	gorm.Model
	PatientID      uint              `json:"patient_id" gorm:"not null;index" example:"1"`
	DoctorID       uint              `json:"doctor_id" gorm:"not null;index" example:"1"`
	DepartmentID   uint              `json:"department_id" gorm:"index" example:"1"`
	AvailabilityID *uint             `json:"availability_id" gorm:"index" example:"7"`
	Date           string            `json:"date" gorm:"type:varchar(10);index" example:"2024-06-01"`
	StartTime      string            `json:"start_time" gorm:"type:varchar(5)" example:"09:00"`
	EndTime        string            `json:"end_time" gorm:"type:varchar(5)" example:"09:30"`
	Mode           string            `json:"mode" gorm:"type:varchar(20)" example:"in-person"`
	Status         AppointmentStatus `json:"status" gorm:"type:varchar(20);not null;default:'scheduled';index" example:"scheduled"`
}

// ListAppointmentResponse is an appointment row joined with display names.
type ListAppointmentResponse struct {
	Appointment
	PatientName    string `json:"patient_name" gorm:"column:patient_name" example:"jdoe"`
	DoctorName     string `json:"doctor_name" gorm:"column:doctor_name" example:"dr.house"`
	DepartmentName string `json:"department_name" gorm:"column:department_name" example:"Cardiology"`
}
