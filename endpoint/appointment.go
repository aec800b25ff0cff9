package endpoint

import (
	"errors"

	"github.com/ariebrainware/hospital-appointment/booking"
	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RescheduleRequest names the new slot of an appointment.
type RescheduleRequest struct {
	AvailabilityID uint `json:"availability_id" example:"9"`
}

// appointmentListQuery joins appointments with display names.
func appointmentListQuery(db *gorm.DB) *gorm.DB {
	return db.Table("appointments").
		Select("appointments.*, pu.username AS patient_name, du.username AS doctor_name, departments.name AS department_name").
		Joins("LEFT JOIN patients ON patients.id = appointments.patient_id").
		Joins("LEFT JOIN users pu ON pu.id = patients.user_id").
		Joins("LEFT JOIN doctors ON doctors.id = appointments.doctor_id").
		Joins("LEFT JOIN users du ON du.id = doctors.user_id").
		Joins("LEFT JOIN departments ON departments.id = appointments.department_id").
		Where("appointments.deleted_at IS NULL")
}

// respondAppointmentList applies the status filter and pagination of the
// request, newest date first, then earliest start.
func respondAppointmentList(c *gin.Context, query *gorm.DB) {
	if status := model.AppointmentStatus(c.Query("status")); status != "" {
		if !status.Valid() {
			util.CallValidationError(c, util.APIErrorParams{Msg: "Invalid status filter", Err: errors.New("unknown status")}, []string{"Status must be scheduled, completed or cancelled"})
			return
		}
		query = query.Where("appointments.status = ?", status)
	}
	if limit := parsePositiveInt(c.Query("limit"), 0, 100); limit > 0 {
		query = query.Limit(limit)
	}
	if offset := parsePositiveInt(c.Query("offset"), 0, 0); offset > 0 {
		query = query.Offset(offset)
	}

	var appointments []model.ListAppointmentResponse
	if err := query.Order("appointments.date DESC, appointments.start_time ASC").Scan(&appointments).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve appointments", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointments retrieved", Data: appointments})
}

// ListPatientAppointments godoc
// @Summary      List own appointments
// @Tags         Patient
// @Produce      json
// @Security     SessionToken
// @Param        status query string false "scheduled|completed|cancelled"
// @Success      200 {object} util.APIResponse{data=[]model.ListAppointmentResponse} "Appointments retrieved"
// @Router       /patient/appointments [get]
func ListPatientAppointments(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	patient, ok := currentPatient(c, db)
	if !ok {
		return
	}
	respondAppointmentList(c, appointmentListQuery(db).Where("appointments.patient_id = ?", patient.ID))
}

// BookAppointment godoc
// @Summary      Book an appointment
// @Description  Reserves a free slot of the chosen doctor for the signed-in patient
// @Tags         Patient
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body booking.BookRequest true "Slot selection"
// @Success      201 {object} util.APIResponse{data=model.Appointment} "Appointment booked"
// @Failure      400 {object} util.APIResponse "Validation errors listed in data.errors"
// @Failure      403 {object} util.APIResponse "Not a patient"
// @Failure      404 {object} util.APIResponse "Slot or doctor not found"
// @Failure      409 {object} util.APIResponse "Slot already booked"
// @Router       /patient/appointments [post]
func BookAppointment(c *gin.Context) {
	var req booking.BookRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	appt, err := booking.Book(c.Request.Context(), db, userID, req)
	if err != nil {
		respondWorkflowError(c, "Booking failed", err)
		return
	}
	util.CallSuccessCreated(c, util.APISuccessParams{Msg: "Appointment booked", Data: appt})
}

// rescheduleFromRequest runs Reschedule for the :id appointment and the body's slot.
func rescheduleFromRequest(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req RescheduleRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	appt, err := booking.Reschedule(c.Request.Context(), db, userID, id, req.AvailabilityID)
	if err != nil {
		respondWorkflowError(c, "Reschedule failed", err)
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment rescheduled", Data: appt})
}

// cancelFromRequest runs Cancel for the :id appointment.
func cancelFromRequest(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	appt, err := booking.Cancel(c.Request.Context(), db, userID, id)
	if err != nil {
		respondWorkflowError(c, "Cancel failed", err)
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment cancelled", Data: appt})
}

// RescheduleAppointment godoc
// @Summary      Reschedule own appointment
// @Tags         Patient
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Param        request body RescheduleRequest true "New slot"
// @Success      200 {object} util.APIResponse{data=model.Appointment} "Appointment rescheduled"
// @Failure      400 {object} util.APIResponse "No slot or same slot selected"
// @Failure      403 {object} util.APIResponse "Not the owner"
// @Failure      404 {object} util.APIResponse "Appointment or slot not found"
// @Failure      409 {object} util.APIResponse "Slot taken or appointment not scheduled"
// @Router       /patient/appointments/{id}/reschedule [post]
func RescheduleAppointment(c *gin.Context) {
	rescheduleFromRequest(c)
}

// CancelAppointment godoc
// @Summary      Cancel own appointment
// @Tags         Patient
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Success      200 {object} util.APIResponse{data=model.Appointment} "Appointment cancelled"
// @Failure      403 {object} util.APIResponse "Not the owner"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Failure      409 {object} util.APIResponse "Appointment already completed"
// @Router       /patient/appointments/{id}/cancel [post]
func CancelAppointment(c *gin.Context) {
	cancelFromRequest(c)
}

// ListDoctorAppointments godoc
// @Summary      List own appointments (doctor)
// @Tags         Doctor
// @Produce      json
// @Security     SessionToken
// @Param        status query string false "scheduled|completed|cancelled"
// @Success      200 {object} util.APIResponse{data=[]model.ListAppointmentResponse} "Appointments retrieved"
// @Router       /doctor/appointments [get]
func ListDoctorAppointments(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	doctor, ok := currentDoctor(c, db)
	if !ok {
		return
	}
	respondAppointmentList(c, appointmentListQuery(db).Where("appointments.doctor_id = ?", doctor.ID))
}

// CompleteAppointment godoc
// @Summary      Complete an appointment
// @Description  Files the visit record and marks the appointment completed
// @Tags         Doctor
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Param        request body booking.CompleteRequest true "Visit record"
// @Success      200 {object} util.APIResponse{data=model.VisitHistory} "Appointment completed"
// @Failure      400 {object} util.APIResponse "Visit type or diagnosis missing"
// @Failure      403 {object} util.APIResponse "Not the assigned doctor"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Failure      409 {object} util.APIResponse "Appointment not scheduled"
// @Router       /doctor/appointments/{id}/complete [post]
func CompleteAppointment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req booking.CompleteRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	completeAppointment(c, id, req)
}

func completeAppointment(c *gin.Context, id uint, req booking.CompleteRequest) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	visit, err := booking.Complete(c.Request.Context(), db, userID, id, req)
	if err != nil {
		respondWorkflowError(c, "Complete failed", err)
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment completed", Data: visit})
}

// AppointmentDetail is an appointment with its patient and the patient's
// earlier visits.
type AppointmentDetail struct {
	Appointment model.ListAppointmentResponse    `json:"appointment"`
	Patient     *PatientSummary                  `json:"patient"`
	History     []model.ListVisitHistoryResponse `json:"history"`
}

// GetDoctorAppointment godoc
// @Summary      Appointment detail (doctor)
// @Description  The appointment, its patient and the patient's visit history
// @Tags         Doctor
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Success      200 {object} util.APIResponse{data=AppointmentDetail} "Appointment retrieved"
// @Failure      403 {object} util.APIResponse "Not the assigned doctor"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Router       /doctor/appointments/{id} [get]
func GetDoctorAppointment(c *gin.Context) {
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

	var detail AppointmentDetail
	err := appointmentListQuery(db).Where("appointments.id = ?", id).Take(&detail.Appointment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Appointment not found", Err: err})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve appointment", Err: err})
		return
	}
	if detail.Appointment.DoctorID != doctor.ID {
		util.CallForbidden(c, util.APIErrorParams{Msg: "Appointment belongs to another doctor", Err: errors.New("not assigned doctor")})
		return
	}

	var patient PatientSummary
	if err := patientBaseQuery(db).Where("patients.id = ?", detail.Appointment.PatientID).Take(&patient).Error; err == nil {
		detail.Patient = &patient
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve patient", Err: err})
		return
	}

	detail.History, err = visitHistoryFor(db, detail.Appointment.PatientID)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve visit history", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment retrieved", Data: detail})
}

// ListAllAppointments godoc
// @Summary      List all appointments (admin only)
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        status query string false "scheduled|completed|cancelled"
// @Param        limit query int false "Limit number of results (max 100)"
// @Param        offset query int false "Offset for pagination"
// @Success      200 {object} util.APIResponse{data=[]model.ListAppointmentResponse} "Appointments retrieved"
// @Router       /admin/appointments [get]
func ListAllAppointments(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	respondAppointmentList(c, appointmentListQuery(db))
}

// AdminCancelAppointment godoc
// @Summary      Cancel any appointment (admin only)
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Success      200 {object} util.APIResponse{data=model.Appointment} "Appointment cancelled"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Failure      409 {object} util.APIResponse "Appointment already completed"
// @Router       /admin/appointments/{id}/cancel [post]
func AdminCancelAppointment(c *gin.Context) {
	cancelFromRequest(c)
}

// AdminRescheduleAppointment godoc
// @Summary      Reschedule any appointment (admin only)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Param        request body RescheduleRequest true "New slot"
// @Success      200 {object} util.APIResponse{data=model.Appointment} "Appointment rescheduled"
// @Failure      400 {object} util.APIResponse "No slot or same slot selected"
// @Failure      404 {object} util.APIResponse "Appointment or slot not found"
// @Failure      409 {object} util.APIResponse "Slot taken or appointment not scheduled"
// @Router       /admin/appointments/{id}/reschedule [post]
func AdminRescheduleAppointment(c *gin.Context) {
	rescheduleFromRequest(c)
}

// AdminDeleteAppointment godoc
// @Summary      Delete an appointment (admin only)
// @Description  Releases the held slot and removes the appointment
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Success      200 {object} util.APIResponse "Appointment deleted"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Router       /admin/appointments/{id} [delete]
func AdminDeleteAppointment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	deleteAppointment(c, id)
}

func deleteAppointment(c *gin.Context, id uint) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	if err := booking.DeleteAppointment(c.Request.Context(), db, id); err != nil {
		respondWorkflowError(c, "Failed to delete appointment", err)
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment deleted"})
}
