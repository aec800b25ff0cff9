package endpoint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ariebrainware/hospital-appointment/booking"
	"github.com/ariebrainware/hospital-appointment/middleware"
	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CreateDoctorRequest struct {
	Username        string `json:"username" example:"dr.house"`
	Email           string `json:"email" example:"house@example.com"`
	Password        string `json:"password" example:"s3cret"`
	DepartmentID    uint   `json:"department_id" example:"1"`
	Specialization  string `json:"specialization" example:"Diagnostics"`
	ExperienceYears int    `json:"experience_years" example:"12"`
}

type UpdateDoctorRequest struct {
	Username        string `json:"username" example:"dr.house"`
	Email           string `json:"email" example:"house@example.com"`
	Password        string `json:"password" example:"n3w-s3cret"`
	DepartmentID    uint   `json:"department_id" example:"2"`
	Specialization  string `json:"specialization" example:"Nephrology"`
	ExperienceYears *int   `json:"experience_years" example:"13"`
}

// ListDoctors godoc
// @Summary      List doctors
// @Description  Public doctor directory, optionally filtered by department
// @Tags         Doctor
// @Produce      json
// @Param        department_id query int false "Department ID"
// @Success      200 {object} util.APIResponse{data=[]model.DoctorSummary} "Doctors retrieved"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /doctors [get]
func ListDoctors(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	doctors, err := doctorSummaries(db, parseUintQuery(c, "department_id"))
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve doctors", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Doctors retrieved", Data: doctors})
}

// CreateDoctor godoc
// @Summary      Create a doctor (admin only)
// @Description  Creates the doctor account and profile in one transaction
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body CreateDoctorRequest true "Doctor"
// @Success      201 {object} util.APIResponse{data=model.Doctor} "Doctor created"
// @Failure      400 {object} util.APIResponse "Validation errors listed in data.errors"
// @Failure      403 {object} util.APIResponse "Forbidden"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /admin/doctors [post]
func CreateDoctor(c *gin.Context) {
	var req CreateDoctorRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	acct := accountFields{Username: req.Username, Email: req.Email, Password: req.Password}
	acct.normalize()
	problems, err := validateAccount(db, acct, 0, false)
	if err == nil {
		var exists bool
		exists, err = departmentExists(db, req.DepartmentID)
		if err == nil && !exists {
			problems = append(problems, "Please select a department for the doctor")
		}
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to validate doctor", Err: err})
		return
	}
	if req.ExperienceYears < 0 {
		problems = append(problems, "Experience years cannot be negative")
	}
	if len(problems) > 0 {
		util.CallValidationError(c, util.APIErrorParams{Msg: "Invalid doctor", Err: fmt.Errorf("invalid doctor")}, problems)
		return
	}

	user, err := newAccount(acct, model.RoleIDDoctor)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to hash password", Err: err})
		return
	}
	doctor := model.Doctor{
		DepartmentID:    req.DepartmentID,
		Specialization:  strings.TrimSpace(req.Specialization),
		ExperienceYears: req.ExperienceYears,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		doctor.UserID = user.ID
		return tx.Create(&doctor).Error
	})
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create doctor", Err: err})
		return
	}
	doctor.User = &user
	util.CallSuccessCreated(c, util.APISuccessParams{Msg: "Doctor created", Data: doctor})
}

// UpdateDoctor godoc
// @Summary      Update a doctor (admin only)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Doctor ID"
// @Param        request body UpdateDoctorRequest true "Doctor"
// @Success      200 {object} util.APIResponse{data=model.Doctor} "Doctor updated"
// @Failure      400 {object} util.APIResponse "Validation errors listed in data.errors"
// @Failure      404 {object} util.APIResponse "Doctor not found"
// @Router       /admin/doctors/{id} [patch]
func UpdateDoctor(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req UpdateDoctorRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
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
	var user model.User
	if !findOrRespond(c, db, &user, doctor.UserID, "User") {
		return
	}

	problems, passwordChanged, err := applyAccountUpdate(db, &user, UpdateUserRequest{Username: req.Username, Email: req.Email, Password: req.Password})
	if err == nil && req.DepartmentID != 0 {
		var exists bool
		exists, err = departmentExists(db, req.DepartmentID)
		if err == nil && !exists {
			problems = append(problems, "Please select a department for the doctor")
		}
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to validate doctor", Err: err})
		return
	}
	if req.ExperienceYears != nil && *req.ExperienceYears < 0 {
		problems = append(problems, "Experience years cannot be negative")
	}
	if len(problems) > 0 {
		util.CallValidationError(c, util.APIErrorParams{Msg: "Invalid doctor", Err: fmt.Errorf("invalid doctor")}, problems)
		return
	}

	if req.DepartmentID != 0 {
		doctor.DepartmentID = req.DepartmentID
	}
	if s := strings.TrimSpace(req.Specialization); s != "" {
		doctor.Specialization = s
	}
	if req.ExperienceYears != nil {
		doctor.ExperienceYears = *req.ExperienceYears
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		return tx.Save(&doctor).Error
	})
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update doctor", Err: err})
		return
	}
	util.ForgetAccount(user.ID)
	if passwordChanged {
		invalidateUserSessions(c, db, user.ID)
	}
	doctor.User = &user
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Doctor updated", Data: doctor})
}

// DeleteDoctor godoc
// @Summary      Delete a doctor (admin only)
// @Description  Cancels the doctor's scheduled appointments, removes their slots, profile, account and sessions
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Doctor ID"
// @Success      200 {object} util.APIResponse "Doctor deleted"
// @Failure      404 {object} util.APIResponse "Doctor not found"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /admin/doctors/{id} [delete]
func DeleteDoctor(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	userID, err := booking.RemoveDoctor(c.Request.Context(), db, id)
	if err != nil {
		respondWorkflowError(c, "Failed to delete doctor", err)
		return
	}
	afterAccountRemoval(c, userID, "doctor")
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Doctor deleted"})
}

// afterAccountRemoval drops cached state of a deleted account and audits it.
func afterAccountRemoval(c *gin.Context, userID uint, kind string) {
	_ = util.InvalidateUserSessions(c.Request.Context(), userID)
	util.ForgetAccount(userID)
	actorID, _ := middleware.GetUserID(c)
	util.LogSecurityEvent(util.SecurityEvent{
		EventType: util.EventAccountDeleted,
		UserID:    strconv.FormatUint(uint64(actorID), 10),
		IP:        c.ClientIP(),
		RequestID: util.RequestIDFrom(c.Request.Context()),
		Message:   fmt.Sprintf("Deleted %s account %d", kind, userID),
	})
}

// DoctorAppointmentsForAdmin godoc
// @Summary      List a doctor's appointments (admin only)
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Doctor ID"
// @Success      200 {object} util.APIResponse{data=[]model.ListAppointmentResponse} "Appointments retrieved"
// @Failure      404 {object} util.APIResponse "Doctor not found"
// @Router       /admin/doctors/{id}/appointments [get]
func DoctorAppointmentsForAdmin(c *gin.Context) {
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
	respondAppointmentList(c, appointmentListQuery(db).Where("appointments.doctor_id = ?", id))
}
