package endpoint

import (
	"fmt"
	"strings"
	"time"

	"github.com/ariebrainware/hospital-appointment/booking"
	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PatientSummary is a patient profile joined with its account.
type PatientSummary struct {
	ID        uint      `json:"id" example:"1"`
	UserID    uint      `json:"user_id" example:"5"`
	Username  string    `json:"username" example:"jdoe"`
	Email     string    `json:"email" example:"jdoe@example.com"`
	Age       int       `json:"age" example:"34"`
	Gender    string    `json:"gender" example:"female"`
	CreatedAt time.Time `json:"created_at"`
}

type patientListQuery struct {
	Limit       int
	Offset      int
	Keyword     string
	GroupByDate string
	SortBy      string
	SortDir     string
}

func parsePatientQuery(c *gin.Context) patientListQuery {
	return patientListQuery{
		Limit:       parsePositiveInt(c.Query("limit"), 0, 100),
		Offset:      parsePositiveInt(c.Query("offset"), 0, 0),
		Keyword:     strings.TrimSpace(c.Query("keyword")),
		GroupByDate: c.Query("group_by_date"),
		SortBy:      c.Query("sort"),
		SortDir:     strings.ToLower(c.Query("sort_dir")),
	}
}

// applyCreatedAtFilter applies a registration date filter for supported ranges.
// Supported values for groupByDate: "last_2_days", "last_3_months", "last_6_months".
func applyCreatedAtFilter(query *gorm.DB, groupByDate string) *gorm.DB {
	switch groupByDate {
	case "last_2_days":
		return query.Where("patients.created_at >= ?", time.Now().AddDate(0, 0, -2))
	case "last_3_months":
		return query.Where("patients.created_at >= ?", time.Now().AddDate(0, -3, 0))
	case "last_6_months":
		return query.Where("patients.created_at >= ?", time.Now().AddDate(0, -6, 0))
	}
	return query
}

func patientBaseQuery(db *gorm.DB) *gorm.DB {
	return db.Table("patients").
		Select("patients.id, patients.user_id, users.username, users.email, patients.age, patients.gender, patients.created_at").
		Joins("JOIN users ON users.id = patients.user_id AND users.deleted_at IS NULL").
		Where("patients.deleted_at IS NULL")
}

func fetchPatients(db *gorm.DB, q patientListQuery) ([]PatientSummary, int64, error) {
	query := patientBaseQuery(db)
	if q.Keyword != "" {
		kw := "%" + q.Keyword + "%"
		query = query.Where("users.username LIKE ? OR users.email LIKE ?", kw, kw)
	}
	query = applyCreatedAtFilter(query, q.GroupByDate)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderDir := "ASC"
	if q.SortDir == "desc" {
		orderDir = "DESC"
	}
	switch q.SortBy {
	case "username":
		query = query.Order("users.username " + orderDir)
	case "age":
		query = query.Order("patients.age " + orderDir)
	default:
		query = query.Order("patients.created_at DESC")
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var patients []PatientSummary
	if err := query.Scan(&patients).Error; err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

// ListPatients godoc
// @Summary      List all patients (admin only)
// @Description  Get a paginated list of patients with optional filtering
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        limit query int false "Limit number of results"
// @Param        offset query int false "Offset for pagination"
// @Param        keyword query string false "Search keyword for username or email"
// @Param        group_by_date query string false "Filter by registration date (last_2_days, last_3_months, last_6_months)"
// @Param        sort query string false "Optional sort field: username|age"
// @Param        sort_dir query string false "Optional sort direction: asc|desc"
// @Success      200 {object} util.APIResponse{data=object} "Patients retrieved"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /admin/patients [get]
func ListPatients(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	patients, total, err := fetchPatients(db, parsePatientQuery(c))
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve patients", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Patients retrieved",
		Data: map[string]interface{}{
			"total":         total,
			"total_fetched": len(patients),
			"patients":      patients,
		},
	})
}

// UpdatePatient godoc
// @Summary      Update a patient's account (admin only)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Patient ID"
// @Param        request body UpdateUserRequest true "Account fields"
// @Success      200 {object} util.APIResponse{data=model.Patient} "Patient updated"
// @Failure      400 {object} util.APIResponse "Validation errors listed in data.errors"
// @Failure      404 {object} util.APIResponse "Patient not found"
// @Router       /admin/patients/{id} [patch]
func UpdatePatient(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	if req.empty() {
		util.CallUserError(c, util.APIErrorParams{Msg: "At least one field (username, email, or password) must be provided", Err: fmt.Errorf("no fields to update")})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var patient model.Patient
	if !findOrRespond(c, db, &patient, id, "Patient") {
		return
	}
	var user model.User
	if !findOrRespond(c, db, &user, patient.UserID, "User") {
		return
	}
	if !saveAccount(c, db, &user, req) {
		return
	}
	patient.User = &user
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Patient updated", Data: patient})
}

// DeletePatient godoc
// @Summary      Delete a patient (admin only)
// @Description  Releases the patient's held slots, removes appointments, profile, account and sessions
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Patient ID"
// @Success      200 {object} util.APIResponse "Patient deleted"
// @Failure      404 {object} util.APIResponse "Patient not found"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /admin/patients/{id} [delete]
func DeletePatient(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	userID, err := booking.RemovePatient(c.Request.Context(), db, id)
	if err != nil {
		respondWorkflowError(c, "Failed to delete patient", err)
		return
	}
	afterAccountRemoval(c, userID, "patient")
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Patient deleted"})
}

// currentPatient loads the patient profile of the signed-in account.
func currentPatient(c *gin.Context, db *gorm.DB) (*model.Patient, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return nil, false
	}
	var patient model.Patient
	if err := db.Preload("User").Where("user_id = ?", userID).First(&patient).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Patient profile not found", Err: err})
			return nil, false
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve patient profile", Err: err})
		return nil, false
	}
	return &patient, true
}

// GetPatientProfile godoc
// @Summary      Get own patient profile
// @Tags         Patient
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=model.Patient} "Profile retrieved"
// @Failure      404 {object} util.APIResponse "Profile not found"
// @Router       /patient/profile [get]
func GetPatientProfile(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	patient, ok := currentPatient(c, db)
	if !ok {
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Profile retrieved", Data: patient})
}

// UpdatePatientProfile godoc
// @Summary      Update own patient profile
// @Tags         Patient
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body model.UpdatePatientProfileRequest true "Profile"
// @Success      200 {object} util.APIResponse{data=model.Patient} "Profile updated"
// @Failure      400 {object} util.APIResponse "Invalid age"
// @Failure      404 {object} util.APIResponse "Profile not found"
// @Router       /patient/profile [patch]
func UpdatePatientProfile(c *gin.Context) {
	var req model.UpdatePatientProfileRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	if req.Age != nil && (*req.Age < 0 || *req.Age > 150) {
		util.CallValidationError(c, util.APIErrorParams{Msg: "Invalid profile", Err: fmt.Errorf("age out of range")}, []string{"Age must be between 0 and 150"})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	patient, ok := currentPatient(c, db)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if req.Age != nil {
		updates["age"] = *req.Age
		patient.Age = *req.Age
	}
	if g := strings.TrimSpace(req.Gender); g != "" {
		updates["gender"] = g
		patient.Gender = g
	}
	if len(updates) > 0 {
		if err := db.Model(&model.Patient{}).Where("id = ?", patient.ID).Updates(updates).Error; err != nil {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update profile", Err: err})
			return
		}
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Profile updated", Data: patient})
}
