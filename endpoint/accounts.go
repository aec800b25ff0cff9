package endpoint

import (
	"fmt"
	"strings"

	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"gorm.io/gorm"
)

const minPasswordLength = 4

// accountFields is the identity part shared by registration, admin doctor
// creation and account edits.
type accountFields struct {
	Username string
	Email    string
	Password string
}

func (a *accountFields) normalize() {
	a.Username = strings.TrimSpace(a.Username)
	a.Email = strings.TrimSpace(a.Email)
}

// validateAccount checks the fields and their uniqueness, skipping excludeID's
// own row. An empty password is accepted when passwordOptional is set.
func validateAccount(db *gorm.DB, a accountFields, excludeID uint, passwordOptional bool) ([]string, error) {
	var problems []string
	if a.Username == "" {
		problems = append(problems, "Username required")
	}
	if a.Email == "" || !strings.Contains(a.Email, "@") {
		problems = append(problems, "Valid email required")
	}
	if !(passwordOptional && a.Password == "") && len(a.Password) < minPasswordLength {
		problems = append(problems, fmt.Sprintf("Password required (min %d characters)", minPasswordLength))
	}

	if a.Username != "" {
		taken, err := columnTaken(db, "username", a.Username, excludeID)
		if err != nil {
			return nil, err
		}
		if taken {
			problems = append(problems, "Username already exists")
		}
	}
	if a.Email != "" {
		taken, err := columnTaken(db, "email", a.Email, excludeID)
		if err != nil {
			return nil, err
		}
		if taken {
			problems = append(problems, "Email already registered")
		}
	}
	return problems, nil
}

func columnTaken(db *gorm.DB, column, value string, excludeID uint) (bool, error) {
	var count int64
	q := db.Model(&model.User{}).Where(column+" = ?", value)
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// departmentExists reports whether id names a department.
func departmentExists(db *gorm.DB, id uint) (bool, error) {
	if id == 0 {
		return false, nil
	}
	var count int64
	if err := db.Model(&model.Department{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// newAccount hashes the password and builds the user row.
func newAccount(a accountFields, roleID uint32) (model.User, error) {
	hash, salt, err := util.HashNewPassword(a.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	return model.User{
		Username:     a.Username,
		Email:        a.Email,
		Password:     hash,
		PasswordSalt: salt,
		RoleID:       roleID,
	}, nil
}
