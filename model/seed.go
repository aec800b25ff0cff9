package model

import (
	"fmt"

	"gorm.io/gorm"
)

// AllModels lists every table owned by the application, in migration order.
var AllModels = []interface{}{
	&Role{},
	&User{},
	&Session{},
	&Department{},
	&Doctor{},
	&Patient{},
	&Availability{},
	&Appointment{},
	&VisitHistory{},
	&SecurityLog{},
}

// Migrate creates or updates all application tables and seeds the fixed roles.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return SeedRoles(db)
}

var defaultDepartments = []string{"Cardiology", "Oncology", "General"}

// SeedDepartments inserts the default departments when the table is empty.
func SeedDepartments(db *gorm.DB) error {
	var count int64
	if err := db.Model(&Department{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, name := range defaultDepartments {
		d := Department{Name: name, Description: fmt.Sprintf("%s department", name)}
		if err := db.Create(&d).Error; err != nil {
			return fmt.Errorf("failed to seed department %s: %w", name, err)
		}
	}
	return nil
}

// SeedAdmin creates the admin account when no account with the username exists.
// The password must already be hashed by the caller.
func SeedAdmin(db *gorm.DB, username, email, hashedPassword, salt string) (bool, error) {
	var existing User
	err := db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return false, err
	}
	admin := User{
		Username:     username,
		Email:        email,
		Password:     hashedPassword,
		PasswordSalt: salt,
		RoleID:       RoleIDAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return false, fmt.Errorf("failed to seed admin: %w", err)
	}
	return true, nil
}
