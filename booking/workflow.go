// Package booking owns the slot and appointment state transitions. Every
// operation runs in a single transaction and re-reads the acting account,
// so a booked slot always corresponds to exactly one scheduled appointment.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"gorm.io/gorm"
)

// BookRequest selects a free slot of a doctor in a department.
type BookRequest struct {
	DepartmentID   uint   `json:"department_id" example:"1"`
	DoctorID       uint   `json:"doctor_id" example:"1"`
	AvailabilityID uint   `json:"availability_id" example:"7"`
	Mode           string `json:"mode" example:"in-person"`
}

// CompleteRequest is the clinical record a doctor files when closing a visit.
type CompleteRequest struct {
	VisitType    string `json:"visit_type" example:"checkup"`
	Diagnosis    string `json:"diagnosis" example:"flu"`
	Prescription string `json:"prescription" example:"rest, fluids"`
	TestsDone    string `json:"tests_done" example:"CBC"`
	Medicines    string `json:"medicines" example:"paracetamol"`
	Notes        string `json:"notes"`
}

var errSlotTaken = fmt.Errorf("%w: selected slot no longer available", ErrConflict)

// claimSlot flips a free slot to booked. The is_booked guard in the WHERE
// clause makes concurrent claims on the same slot race on a single row update.
func claimSlot(tx *gorm.DB, slotID uint) error {
	res := tx.Model(&model.Availability{}).
		Where("id = ? AND is_booked = ?", slotID, false).
		Update("is_booked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errSlotTaken
	}
	return nil
}

// releaseHeldSlot frees the slot a scheduled appointment holds. Rows created
// before slot references were stored fall back to the (doctor, date, start)
// match, which never touches the slots listed in keep. It reports whether a
// slot was actually freed.
func releaseHeldSlot(tx *gorm.DB, appt *model.Appointment, keep ...uint) (bool, error) {
	if appt.Status != model.StatusScheduled {
		return false, nil
	}
	return freeSlotOf(tx, appt, keep...)
}

func freeSlotOf(tx *gorm.DB, appt *model.Appointment, keep ...uint) (bool, error) {
	q := tx.Model(&model.Availability{}).Where("is_booked = ?", true)
	if appt.AvailabilityID != nil {
		q = q.Where("id = ?", *appt.AvailabilityID)
	} else {
		q = q.Where("doctor_id = ? AND date = ? AND start_time = ?", appt.DoctorID, appt.Date, appt.StartTime)
		if len(keep) > 0 {
			q = q.Where("id NOT IN ?", keep)
		}
	}
	res := q.Update("is_booked", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func logReleaseMiss(ctx context.Context, actorID uint, appt *model.Appointment) {
	var slotID uint
	if appt.AvailabilityID != nil {
		slotID = *appt.AvailabilityID
	}
	util.LogAppointmentEvent(util.AppointmentEventParams{
		Event:         util.EventSlotReleaseMissed,
		ActorID:       actorID,
		AppointmentID: appt.ID,
		SlotID:        slotID,
		RequestID:     util.RequestIDFrom(ctx),
		Message:       fmt.Sprintf("No booked slot found for doctor %d on %s %s", appt.DoctorID, appt.Date, appt.StartTime),
	})
}

func logConflict(ctx context.Context, actorID, apptID, slotID uint, err error) {
	if !errors.Is(err, ErrConflict) {
		return
	}
	util.LogAppointmentEvent(util.AppointmentEventParams{
		Event:         util.EventAppointmentConflict,
		ActorID:       actorID,
		AppointmentID: apptID,
		SlotID:        slotID,
		RequestID:     util.RequestIDFrom(ctx),
		Message:       err.Error(),
	})
}

// Book reserves a free slot for the acting patient and creates a scheduled
// appointment copying the slot's window.
func Book(ctx context.Context, db *gorm.DB, actorID uint, req BookRequest) (*model.Appointment, error) {
	var missing []string
	if req.DepartmentID == 0 {
		missing = append(missing, "Department required")
	}
	if req.DoctorID == 0 {
		missing = append(missing, "Doctor required")
	}
	if req.AvailabilityID == 0 {
		missing = append(missing, "Availability slot required")
	}
	if len(missing) > 0 {
		return nil, invalid(missing...)
	}
	mode := strings.TrimSpace(req.Mode)
	if mode == "" {
		mode = model.DefaultAppointmentMode
	}

	var appt model.Appointment
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := loadActor(tx, actorID)
		if err != nil {
			return err
		}
		if a.Patient == nil {
			return fmt.Errorf("%w: only patients can book appointments", ErrForbidden)
		}

		slot, err := findSlot(tx, req.AvailabilityID)
		if err != nil {
			return err
		}
		if slot.IsBooked {
			return errSlotTaken
		}

		var doctor model.Doctor
		if err := tx.First(&doctor, req.DoctorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: doctor %d", ErrNotFound, req.DoctorID)
			}
			return err
		}
		var problems []string
		if slot.DoctorID != doctor.ID {
			problems = append(problems, "Selected slot does not belong to the selected doctor")
		}
		if doctor.DepartmentID != req.DepartmentID {
			problems = append(problems, "Selected doctor does not belong to the selected department")
		}
		if len(problems) > 0 {
			return invalid(problems...)
		}

		if err := claimSlot(tx, slot.ID); err != nil {
			return err
		}
		slotID := slot.ID
		appt = model.Appointment{
			PatientID:      a.Patient.ID,
			DoctorID:       doctor.ID,
			DepartmentID:   doctor.DepartmentID,
			AvailabilityID: &slotID,
			Date:           slot.Date,
			StartTime:      slot.StartTime,
			EndTime:        slot.EndTime,
			Mode:           mode,
			Status:         model.StatusScheduled,
		}
		return tx.Create(&appt).Error
	})
	if err != nil {
		logConflict(ctx, actorID, 0, req.AvailabilityID, err)
		return nil, err
	}

	util.LogAppointmentEvent(util.AppointmentEventParams{
		Event:         util.EventAppointmentBooked,
		ActorID:       actorID,
		AppointmentID: appt.ID,
		SlotID:        req.AvailabilityID,
		RequestID:     util.RequestIDFrom(ctx),
		Message:       "Appointment booked",
	})
	return &appt, nil
}

// Reschedule moves a scheduled appointment to another free slot, possibly of
// another doctor. The owning patient or an admin may reschedule.
func Reschedule(ctx context.Context, db *gorm.DB, actorID, appointmentID, newSlotID uint) (*model.Appointment, error) {
	if newSlotID == 0 {
		return nil, invalid("Please select an available slot.")
	}

	var (
		appt     *model.Appointment
		released bool
		previous model.Appointment
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := loadActor(tx, actorID)
		if err != nil {
			return err
		}
		appt, err = findAppointment(tx, appointmentID)
		if err != nil {
			return err
		}
		if !a.isAdmin() && !a.ownsAsPatient(appt) {
			return fmt.Errorf("%w: appointment %d belongs to another patient", ErrForbidden, appointmentID)
		}
		if appt.Status != model.StatusScheduled {
			return fmt.Errorf("%w: appointment is %s", ErrConflict, appt.Status)
		}
		if appt.AvailabilityID != nil && *appt.AvailabilityID == newSlotID {
			return invalid("Appointment already holds the selected slot")
		}

		slot, err := findSlot(tx, newSlotID)
		if err != nil {
			return err
		}
		if slot.IsBooked {
			return errSlotTaken
		}
		// Release before claiming; the legacy window match must never see the new slot booked.
		previous = *appt
		if released, err = releaseHeldSlot(tx, appt, slot.ID); err != nil {
			return err
		}
		if err := claimSlot(tx, slot.ID); err != nil {
			return err
		}

		var doctor model.Doctor
		err = tx.First(&doctor, slot.DoctorID).Error
		switch {
		case err == nil:
			appt.DepartmentID = doctor.DepartmentID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		slotID := slot.ID
		appt.DoctorID = slot.DoctorID
		appt.AvailabilityID = &slotID
		appt.Date = slot.Date
		appt.StartTime = slot.StartTime
		appt.EndTime = slot.EndTime
		appt.Status = model.StatusScheduled
		return tx.Save(appt).Error
	})
	if err != nil {
		logConflict(ctx, actorID, appointmentID, newSlotID, err)
		return nil, err
	}

	if !released {
		logReleaseMiss(ctx, actorID, &previous)
	}
	util.LogAppointmentEvent(util.AppointmentEventParams{
		Event:         util.EventAppointmentRescheduled,
		ActorID:       actorID,
		AppointmentID: appt.ID,
		SlotID:        newSlotID,
		RequestID:     util.RequestIDFrom(ctx),
		Message:       fmt.Sprintf("Appointment moved to %s %s", appt.Date, appt.StartTime),
	})
	return appt, nil
}

// Cancel marks an appointment cancelled and frees the slot it held. The owning
// patient, the assigned doctor, or an admin may cancel. Cancelling an already
// cancelled appointment is a no-op.
func Cancel(ctx context.Context, db *gorm.DB, actorID, appointmentID uint) (*model.Appointment, error) {
	var (
		appt     *model.Appointment
		previous model.Appointment
		changed  bool
		released bool
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := loadActor(tx, actorID)
		if err != nil {
			return err
		}
		appt, err = findAppointment(tx, appointmentID)
		if err != nil {
			return err
		}
		if !a.isAdmin() && !a.ownsAsPatient(appt) && !a.assignedDoctor(appt) {
			return fmt.Errorf("%w: appointment %d is not yours to cancel", ErrForbidden, appointmentID)
		}
		switch appt.Status {
		case model.StatusCancelled:
			return nil
		case model.StatusCompleted:
			return fmt.Errorf("%w: completed appointments cannot be cancelled", ErrConflict)
		}

		previous = *appt
		if released, err = releaseHeldSlot(tx, appt); err != nil {
			return err
		}
		appt.Status = model.StatusCancelled
		appt.AvailabilityID = nil
		changed = true
		return tx.Save(appt).Error
	})
	if err != nil {
		logConflict(ctx, actorID, appointmentID, 0, err)
		return nil, err
	}

	if changed {
		if !released {
			logReleaseMiss(ctx, actorID, &previous)
		}
		util.LogAppointmentEvent(util.AppointmentEventParams{
			Event:         util.EventAppointmentCancelled,
			ActorID:       actorID,
			AppointmentID: appt.ID,
			RequestID:     util.RequestIDFrom(ctx),
			Message:       "Appointment cancelled",
		})
	}
	return appt, nil
}

// Complete closes a scheduled appointment and files its visit history. Only the
// assigned doctor may complete; the status change and the history row commit
// together or not at all.
func Complete(ctx context.Context, db *gorm.DB, actorID, appointmentID uint, req CompleteRequest) (*model.VisitHistory, error) {
	req.VisitType = strings.TrimSpace(req.VisitType)
	req.Diagnosis = strings.TrimSpace(req.Diagnosis)

	var history model.VisitHistory
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := loadActor(tx, actorID)
		if err != nil {
			return err
		}
		appt, err := findAppointment(tx, appointmentID)
		if err != nil {
			return err
		}
		if !a.assignedDoctor(appt) {
			return fmt.Errorf("%w: appointment %d is assigned to another doctor", ErrForbidden, appointmentID)
		}

		var problems []string
		if req.VisitType == "" {
			problems = append(problems, "Visit type is required.")
		}
		if req.Diagnosis == "" {
			problems = append(problems, "Diagnosis is required.")
		}
		if len(problems) > 0 {
			return invalid(problems...)
		}

		res := tx.Model(&model.Appointment{}).
			Where("id = ? AND status = ?", appt.ID, model.StatusScheduled).
			Update("status", model.StatusCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: appointment is %s, not scheduled", ErrConflict, appt.Status)
		}

		visitDate := appt.Date
		if visitDate == "" {
			visitDate = time.Now().UTC().Format(model.DateLayout)
		}
		history = model.VisitHistory{
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			DoctorID:      appt.DoctorID,
			VisitDate:     visitDate,
			VisitType:     req.VisitType,
			Diagnosis:     req.Diagnosis,
			Prescription:  strings.TrimSpace(req.Prescription),
			TestsDone:     strings.TrimSpace(req.TestsDone),
			Medicines:     strings.TrimSpace(req.Medicines),
			Notes:         strings.TrimSpace(req.Notes),
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		logConflict(ctx, actorID, appointmentID, 0, err)
		return nil, err
	}

	util.LogAppointmentEvent(util.AppointmentEventParams{
		Event:         util.EventAppointmentCompleted,
		ActorID:       actorID,
		AppointmentID: appointmentID,
		RequestID:     util.RequestIDFrom(ctx),
		Message:       fmt.Sprintf("Visit history %d filed", history.ID),
	})
	return &history, nil
}
