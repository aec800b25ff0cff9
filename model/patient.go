package model

import "gorm.io/gorm"

// Patient is the profile of a patient-role account.
type Patient struct {
	gorm.Model
	UserID uint   `json:"user_id" gorm:"not null;uniqueIndex"`
	Age    int    `json:"age"`
	Gender string `json:"gender" gorm:"type:varchar(20)"`
	User   *User  `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

type UpdatePatientProfileRequest struct {
	Age    *int   `json:"age" example:"34"`
	Gender string `json:"gender" example:"female"`
}
