package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariebrainware/hospital-appointment/model"
	"gorm.io/gorm"
)

// DeleteAppointment removes an appointment and frees the slot it still holds.
func DeleteAppointment(ctx context.Context, db *gorm.DB, appointmentID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		appt, err := findAppointment(tx, appointmentID)
		if err != nil {
			return err
		}
		if err := releaseForRemoval(tx, appt); err != nil {
			return err
		}
		return tx.Delete(appt).Error
	})
}

// releaseForRemoval frees the slot of an appointment that is about to be
// deleted. A completed appointment keeps its slot booked while it exists, so
// its referenced slot is freed here too.
func releaseForRemoval(tx *gorm.DB, appt *model.Appointment) error {
	switch {
	case appt.Status == model.StatusScheduled:
		_, err := releaseHeldSlot(tx, appt)
		return err
	case appt.Status == model.StatusCompleted && appt.AvailabilityID != nil:
		_, err := freeSlotOf(tx, appt)
		return err
	}
	return nil
}

func deleteAccount(tx *gorm.DB, userID uint) error {
	if err := tx.Where("user_id = ?", userID).Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	if err := tx.Unscoped().Delete(&model.User{}, userID).Error; err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// RemoveDoctor deletes a doctor with their account. Scheduled appointments are
// cancelled first so no booked slot outlives its appointment. It returns the
// deleted account id so callers can drop cached sessions.
func RemoveDoctor(ctx context.Context, db *gorm.DB, doctorID uint) (uint, error) {
	var userID uint
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doctor model.Doctor
		if err := tx.First(&doctor, doctorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: doctor %d", ErrNotFound, doctorID)
			}
			return err
		}
		userID = doctor.UserID

		if err := tx.Model(&model.Appointment{}).
			Where("doctor_id = ? AND status = ?", doctor.ID, model.StatusScheduled).
			Updates(map[string]interface{}{"status": model.StatusCancelled, "availability_id": nil}).Error; err != nil {
			return fmt.Errorf("cancel appointments: %w", err)
		}
		if err := tx.Unscoped().Where("doctor_id = ?", doctor.ID).Delete(&model.Availability{}).Error; err != nil {
			return fmt.Errorf("delete availability: %w", err)
		}
		if err := tx.Unscoped().Delete(&doctor).Error; err != nil {
			return fmt.Errorf("delete doctor profile: %w", err)
		}
		return deleteAccount(tx, userID)
	})
	return userID, err
}

// RemovePatient deletes a patient, their appointments and account. Slots held
// by their appointments become free again. Visit histories are kept.
func RemovePatient(ctx context.Context, db *gorm.DB, patientID uint) (uint, error) {
	var userID uint
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var patient model.Patient
		if err := tx.First(&patient, patientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: patient %d", ErrNotFound, patientID)
			}
			return err
		}
		userID = patient.UserID

		var held []model.Appointment
		if err := tx.Where("patient_id = ? AND status <> ?", patient.ID, model.StatusCancelled).Find(&held).Error; err != nil {
			return err
		}
		for i := range held {
			if err := releaseForRemoval(tx, &held[i]); err != nil {
				return fmt.Errorf("release slot: %w", err)
			}
		}
		if err := tx.Unscoped().Where("patient_id = ?", patient.ID).Delete(&model.Appointment{}).Error; err != nil {
			return fmt.Errorf("delete appointments: %w", err)
		}
		if err := tx.Unscoped().Delete(&patient).Error; err != nil {
			return fmt.Errorf("delete patient profile: %w", err)
		}
		return deleteAccount(tx, userID)
	})
	return userID, err
}
