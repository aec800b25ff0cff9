package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Role names. Every account carries exactly one of them.
const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// Role IDs are fixed so sessions can cache "userID:roleID" without a lookup.
const (
	RoleIDAdmin   uint32 = 1
	RoleIDDoctor  uint32 = 2
	RoleIDPatient uint32 = 3
)

type Role struct {
	ID        uint32    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

var defaultRoles = []Role{
	{ID: RoleIDAdmin, Name: RoleAdmin},
	{ID: RoleIDDoctor, Name: RoleDoctor},
	{ID: RoleIDPatient, Name: RolePatient},
}

// RoleIDFor returns the fixed ID of a role name.
func RoleIDFor(name string) (uint32, bool) {
	for _, r := range defaultRoles {
		if r.Name == name {
			return r.ID, true
		}
	}
	return 0, false
}

// RoleNameFor returns the role name of a fixed role ID, or "" if unknown.
func RoleNameFor(id uint32) string {
	for _, r := range defaultRoles {
		if r.ID == id {
			return r.Name
		}
	}
	return ""
}

func SeedRoles(db *gorm.DB) error {
	for _, role := range defaultRoles {
		var existingRole Role
		err := db.Where("id = ?", role.ID).First(&existingRole).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		r := role
		if err := db.Create(&r).Error; err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}
	}
	return nil
}
