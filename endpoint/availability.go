package endpoint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// currentDoctor loads the doctor profile of the signed-in account.
func currentDoctor(c *gin.Context, db *gorm.DB) (*model.Doctor, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return nil, false
	}
	var doctor model.Doctor
	if err := db.Where("user_id = ?", userID).First(&doctor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Doctor profile not found", Err: err})
			return nil, false
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve doctor profile", Err: err})
		return nil, false
	}
	return &doctor, true
}

// overlappingSlot returns the first of the doctor's slots on date that
// intersects [start, end), or nil.
func overlappingSlot(db *gorm.DB, doctorID uint, date, start, end string) (*model.Availability, error) {
	var sameDay []model.Availability
	if err := db.Where("doctor_id = ? AND date = ?", doctorID, date).Find(&sameDay).Error; err != nil {
		return nil, err
	}
	for i := range sameDay {
		if sameDay[i].Overlaps(date, start, end) {
			return &sameDay[i], nil
		}
	}
	return nil, nil
}

// CreateAvailability godoc
// @Summary      Declare an availability slot
// @Description  Adds a free slot for the signed-in doctor. Slots may not overlap on the same date.
// @Tags         Doctor
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body model.CreateAvailabilityRequest true "Slot"
// @Success      201 {object} util.APIResponse{data=model.Availability} "Slot created"
// @Failure      400 {object} util.APIResponse "Invalid or overlapping slot"
// @Failure      403 {object} util.APIResponse "Forbidden"
// @Router       /doctor/availability [post]
func CreateAvailability(c *gin.Context) {
	var req model.CreateAvailabilityRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	date := strings.TrimSpace(req.Date)
	start, end, err := model.ParseSlotWindow(date, strings.TrimSpace(req.StartTime), strings.TrimSpace(req.EndTime))
	if err != nil {
		util.CallValidationError(c, util.APIErrorParams{Msg: "Invalid slot", Err: err}, []string{err.Error()})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	doctor, ok := currentDoctor(c, db)
	if !ok {
		return
	}

	clash, err := overlappingSlot(db, doctor.ID, date, start, end)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check overlapping slots", Err: err})
		return
	}
	if clash != nil {
		msg := fmt.Sprintf("Slot overlaps an existing slot %s-%s", clash.StartTime, clash.EndTime)
		util.CallValidationError(c, util.APIErrorParams{Msg: "Invalid slot", Err: errors.New("overlapping slot")}, []string{msg})
		return
	}

	slot := model.Availability{DoctorID: doctor.ID, Date: date, StartTime: start, EndTime: end}
	if err := db.Create(&slot).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create slot", Err: err})
		return
	}
	util.CallSuccessCreated(c, util.APISuccessParams{Msg: "Slot created", Data: slot})
}

// ListOwnAvailability godoc
// @Summary      List own slots
// @Tags         Doctor
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=[]model.Availability} "Slots retrieved"
// @Router       /doctor/availability [get]
func ListOwnAvailability(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	doctor, ok := currentDoctor(c, db)
	if !ok {
		return
	}
	var slots []model.Availability
	if err := db.Where("doctor_id = ?", doctor.ID).Order("date ASC, start_time ASC").Find(&slots).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve slots", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Slots retrieved", Data: slots})
}

// DeleteAvailability godoc
// @Summary      Withdraw a free slot
// @Tags         Doctor
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Slot ID"
// @Success      200 {object} util.APIResponse "Slot deleted"
// @Failure      403 {object} util.APIResponse "Slot belongs to another doctor"
// @Failure      404 {object} util.APIResponse "Slot not found"
// @Failure      409 {object} util.APIResponse "Slot is booked"
// @Router       /doctor/availability/{id} [delete]
func DeleteAvailability(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	doctor, ok := currentDoctor(c, db)
	if !ok {
		return
	}
	var slot model.Availability
	if !findOrRespond(c, db, &slot, id, "Slot") {
		return
	}
	if slot.DoctorID != doctor.ID {
		util.CallForbidden(c, util.APIErrorParams{Msg: "Slot belongs to another doctor", Err: errors.New("not slot owner")})
		return
	}

	// a slot booked after the read above must survive, so delete only while free
	res := db.Unscoped().Where("id = ? AND is_booked = ?", id, false).Delete(&model.Availability{})
	if res.Error != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete slot", Err: res.Error})
		return
	}
	if res.RowsAffected == 0 {
		util.CallConflict(c, util.APIErrorParams{Msg: "Booked slots cannot be deleted", Err: errors.New("slot is booked")})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Slot deleted"})
}

// ListFreeSlots godoc
// @Summary      List a doctor's free slots
// @Tags         Doctor
// @Produce      json
// @Param        id path int true "Doctor ID"
// @Param        date query string false "Only slots on this date (YYYY-MM-DD)"
// @Success      200 {object} util.APIResponse{data=[]model.Availability} "Slots retrieved"
// @Failure      404 {object} util.APIResponse "Doctor not found"
// @Router       /doctors/{id}/availability [get]
func ListFreeSlots(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var doctor model.Doctor
	if !findOrRespond(c, db, &doctor, id, "Doctor") {
		return
	}
	query := db.Where("doctor_id = ? AND is_booked = ?", id, false)
	if date := strings.TrimSpace(c.Query("date")); date != "" {
		query = query.Where("date = ?", date)
	}
	var slots []model.Availability
	if err := query.Order("date ASC, start_time ASC").Find(&slots).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve slots", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Slots retrieved", Data: slots})
}
