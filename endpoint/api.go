package endpoint

import (
	"errors"

	"github.com/ariebrainware/hospital-appointment/booking"
	"github.com/ariebrainware/hospital-appointment/middleware"
	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
)

// UpdateAppointmentRequest is the body of PUT /api/appointments/{id}. A slot
// id reschedules; otherwise the status selects cancel or complete.
type UpdateAppointmentRequest struct {
	Status         model.AppointmentStatus `json:"status" example:"cancelled"`
	AvailabilityID uint                    `json:"availability_id" example:"9"`
	booking.CompleteRequest
}

// APIListAppointments godoc
// @Summary      List appointments
// @Description  Admins see every appointment, doctors and patients their own
// @Tags         API
// @Produce      json
// @Security     SessionToken
// @Param        status query string false "scheduled|completed|cancelled"
// @Success      200 {object} util.APIResponse{data=[]model.ListAppointmentResponse} "Appointments retrieved"
// @Router       /api/appointments [get]
func APIListAppointments(c *gin.Context) {
	roleID, _ := middleware.GetRoleID(c)
	switch roleID {
	case model.RoleIDAdmin:
		ListAllAppointments(c)
	case model.RoleIDDoctor:
		ListDoctorAppointments(c)
	case model.RoleIDPatient:
		ListPatientAppointments(c)
	default:
		util.CallForbidden(c, util.APIErrorParams{Msg: "Unknown role", Err: errors.New("unknown role")})
	}
}

// APICreateAppointment godoc
// @Summary      Book an appointment
// @Tags         API
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body booking.BookRequest true "Slot selection"
// @Success      201 {object} util.APIResponse{data=object} "Appointment booked, data holds the id"
// @Failure      400 {object} util.APIResponse "Validation errors listed in data.errors"
// @Failure      403 {object} util.APIResponse "Not a patient"
// @Failure      404 {object} util.APIResponse "Slot or doctor not found"
// @Failure      409 {object} util.APIResponse "Slot already booked"
// @Router       /api/appointments [post]
func APICreateAppointment(c *gin.Context) {
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
	util.CallSuccessCreated(c, util.APISuccessParams{Msg: "Appointment booked", Data: map[string]uint{"id": appt.ID}})
}

// APIUpdateAppointment godoc
// @Summary      Change an appointment
// @Description  availability_id reschedules; status "cancelled" cancels; status "completed" completes with the visit record fields
// @Tags         API
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Param        request body UpdateAppointmentRequest true "Change"
// @Success      200 {object} util.APIResponse "Appointment updated"
// @Failure      400 {object} util.APIResponse "Validation errors listed in data.errors"
// @Failure      403 {object} util.APIResponse "Forbidden"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Failure      409 {object} util.APIResponse "Conflict"
// @Router       /api/appointments/{id} [put]
func APIUpdateAppointment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req UpdateAppointmentRequest
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
	ctx := c.Request.Context()

	switch {
	case req.AvailabilityID != 0 && (req.Status == "" || req.Status == model.StatusScheduled):
		appt, err := booking.Reschedule(ctx, db, userID, id, req.AvailabilityID)
		if err != nil {
			respondWorkflowError(c, "Reschedule failed", err)
			return
		}
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment rescheduled", Data: appt})
	case req.Status == model.StatusCancelled:
		appt, err := booking.Cancel(ctx, db, userID, id)
		if err != nil {
			respondWorkflowError(c, "Cancel failed", err)
			return
		}
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment cancelled", Data: appt})
	case req.Status == model.StatusCompleted:
		completeAppointment(c, id, req.CompleteRequest)
	default:
		util.CallValidationError(c, util.APIErrorParams{Msg: "Invalid update", Err: errors.New("no supported change")},
			[]string{"Provide availability_id to reschedule, or status cancelled or completed"})
	}
}

// APIDeleteAppointment godoc
// @Summary      Delete an appointment (admin only)
// @Tags         API
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Success      200 {object} util.APIResponse "Appointment deleted"
// @Failure      403 {object} util.APIResponse "Forbidden"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Router       /api/appointments/{id} [delete]
func APIDeleteAppointment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	deleteAppointment(c, id)
}
