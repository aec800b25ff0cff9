package model

import "gorm.io/gorm"

// Department represents a hospital department
// @Description Department information
type Department struct {
	gorm.Model
	Name        string `json:"name" gorm:"type:varchar(80);uniqueIndex;not null" example:"Cardiology"`
	Description string `json:"description" gorm:"type:text" example:"Cardiology department"`
}
