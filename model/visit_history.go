package model

import "time"

// VisitHistory is the clinical record written when a doctor completes an
// appointment. Rows are append-only: there is no UpdatedAt or DeletedAt.
// @Description Visit history record
type VisitHistory struct {
	ID            uint      `json:"id" gorm:"primaryKey" example:"1"`
	AppointmentID uint      `json:"appointment_id" gorm:"not null;uniqueIndex" example:"1"`
	PatientID     uint      `json:"patient_id" gorm:"not null;index" example:"1"`
	DoctorID      uint      `json:"doctor_id" gorm:"not null;index" example:"1"`
	VisitDate     string    `json:"visit_date" gorm:"type:varchar(10);index" example:"2024-06-01"`
	VisitType     string    `json:"visit_type" gorm:"type:varchar(50);not null" example:"checkup"`
	Diagnosis     string    `json:"diagnosis" gorm:"type:text;not null" example:"flu"`
	Prescription  string    `json:"prescription" gorm:"type:text" example:"rest, fluids"`
	TestsDone     string    `json:"tests_done" gorm:"type:text" example:"CBC"`
	Medicines     string    `json:"medicines" gorm:"type:text" example:"paracetamol"`
	Notes         string    `json:"notes" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"`
}

func (VisitHistory) TableName() string {
	return "visit_histories"
}

// ListVisitHistoryResponse is a history row joined with the doctor's username.
type ListVisitHistoryResponse struct {
	VisitHistory
	DoctorName string `json:"doctor_name" gorm:"column:doctor_name" example:"dr.house"`
}
