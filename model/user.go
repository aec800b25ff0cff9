package model

import (
	"time"

	"gorm.io/gorm"
)

// User is an account. Username and email are unique across all accounts.
type User struct {
	gorm.Model
	Username       string `json:"username" gorm:"type:varchar(80);uniqueIndex;not null" example:"jdoe"`
	Email          string `json:"email" gorm:"type:varchar(120);uniqueIndex;not null" example:"jdoe@example.com"`
	Password       string `json:"-" gorm:"column:password"`
	PasswordSalt   string `json:"-" gorm:"column:password_salt"`
	RoleID         uint32 `json:"role_id" gorm:"not null;index" example:"3"`
	FailedAttempts int    `json:"-" gorm:"default:0"`
	LockedUntil    *int64 `json:"-"`
}

// RoleName returns the role name of the account.
func (u User) RoleName() string {
	return RoleNameFor(u.RoleID)
}

// Session is a login session keyed by its signed token.
type Session struct {
	gorm.Model
	SessionToken string    `json:"session_token" gorm:"type:varchar(512);uniqueIndex;not null"`
	UserID       uint      `json:"user_id" gorm:"not null;index"`
	ExpiresAt    time.Time `json:"expires_at" gorm:"not null"`
	ClientIP     string    `json:"client_ip" gorm:"type:varchar(45)"`
	Browser      string    `json:"browser" gorm:"type:varchar(512)"`
}
