package model

import "gorm.io/gorm"

// Doctor is the profile of a doctor-role account.
// @Description Doctor profile information
type Doctor struct {
	gorm.Model
	UserID          uint        `json:"user_id" gorm:"not null;uniqueIndex" example:"2"`
	Specialization  string      `json:"specialization" gorm:"type:varchar(120)" example:"Interventional cardiology"`
	ExperienceYears int         `json:"experience_years" example:"8"`
	DepartmentID    uint        `json:"department_id" gorm:"not null;index" example:"1"`
	User            *User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Department      *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
}

// DoctorSummary is the public view of a doctor used in listings.
type DoctorSummary struct {
	ID              uint   `json:"id" example:"1"`
	Username        string `json:"username" example:"dr.house"`
	Specialization  string `json:"specialization" example:"Diagnostics"`
	ExperienceYears int    `json:"experience_years" example:"12"`
	DepartmentID    uint   `json:"department_id" example:"1"`
	DepartmentName  string `json:"department_name" example:"General"`
}
