package booking

import (
	"errors"
	"fmt"

	"github.com/ariebrainware/hospital-appointment/model"
	"gorm.io/gorm"
)

// actor is the caller as currently recorded in the store, not as claimed by
// the session. Doctor and Patient are set only for those roles.
type actor struct {
	User    model.User
	Doctor  *model.Doctor
	Patient *model.Patient
}

func (a *actor) isAdmin() bool {
	return a.User.RoleID == model.RoleIDAdmin
}

func (a *actor) ownsAsPatient(appt *model.Appointment) bool {
	return a.Patient != nil && appt.PatientID == a.Patient.ID
}

func (a *actor) assignedDoctor(appt *model.Appointment) bool {
	return a.Doctor != nil && appt.DoctorID == a.Doctor.ID
}

func loadActor(tx *gorm.DB, userID uint) (*actor, error) {
	var a actor
	if err := tx.First(&a.User, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: account %d no longer exists", ErrForbidden, userID)
		}
		return nil, err
	}

	switch a.User.RoleID {
	case model.RoleIDDoctor:
		var d model.Doctor
		err := tx.Where("user_id = ?", userID).First(&d).Error
		if err == nil {
			a.Doctor = &d
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	case model.RoleIDPatient:
		var p model.Patient
		err := tx.Where("user_id = ?", userID).First(&p).Error
		if err == nil {
			a.Patient = &p
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return &a, nil
}

func findAppointment(tx *gorm.DB, id uint) (*model.Appointment, error) {
	var appt model.Appointment
	if err := tx.First(&appt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: appointment %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &appt, nil
}

func findSlot(tx *gorm.DB, id uint) (*model.Availability, error) {
	var slot model.Availability
	if err := tx.First(&slot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: availability slot %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &slot, nil
}
