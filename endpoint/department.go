package endpoint

import (
	"fmt"
	"strings"

	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DepartmentRequest struct {
	Name        string `json:"name" example:"Cardiology"`
	Description string `json:"description" example:"Heart and vessels"`
}

// ListDepartments godoc
// @Summary      List departments
// @Tags         Department
// @Produce      json
// @Success      200 {object} util.APIResponse{data=[]model.Department} "Departments retrieved"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /departments [get]
func ListDepartments(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var departments []model.Department
	if err := db.Order("name ASC").Find(&departments).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve departments", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Departments retrieved", Data: departments})
}

// GetDepartment godoc
// @Summary      Get a department
// @Tags         Department
// @Produce      json
// @Param        id path int true "Department ID"
// @Success      200 {object} util.APIResponse{data=model.Department} "Department retrieved"
// @Failure      400 {object} util.APIResponse "Invalid ID"
// @Failure      404 {object} util.APIResponse "Department not found"
// @Router       /departments/{id} [get]
func GetDepartment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var department model.Department
	if !findOrRespond(c, db, &department, id, "Department") {
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Department retrieved", Data: department})
}

// doctorSummaries selects the public doctor view, optionally for one department.
func doctorSummaries(db *gorm.DB, departmentID uint) ([]model.DoctorSummary, error) {
	query := db.Table("doctors").
		Select("doctors.id, users.username, doctors.specialization, doctors.experience_years, doctors.department_id, departments.name AS department_name").
		Joins("JOIN users ON users.id = doctors.user_id AND users.deleted_at IS NULL").
		Joins("LEFT JOIN departments ON departments.id = doctors.department_id").
		Where("doctors.deleted_at IS NULL")
	if departmentID != 0 {
		query = query.Where("doctors.department_id = ?", departmentID)
	}
	var doctors []model.DoctorSummary
	err := query.Order("users.username ASC").Scan(&doctors).Error
	return doctors, err
}

// ListDepartmentDoctors godoc
// @Summary      List the doctors of a department
// @Tags         Department
// @Produce      json
// @Param        id path int true "Department ID"
// @Success      200 {object} util.APIResponse{data=[]model.DoctorSummary} "Doctors retrieved"
// @Failure      404 {object} util.APIResponse "Department not found"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /departments/{id}/doctors [get]
func ListDepartmentDoctors(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var department model.Department
	if !findOrRespond(c, db, &department, id, "Department") {
		return
	}
	doctors, err := doctorSummaries(db, id)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve doctors", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Doctors retrieved", Data: doctors})
}

func departmentNameTaken(db *gorm.DB, name string, excludeID uint) (bool, error) {
	var count int64
	q := db.Model(&model.Department{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// validateDepartmentName answers 400 for an empty or duplicate name.
func validateDepartmentName(c *gin.Context, db *gorm.DB, name string, excludeID uint) bool {
	if name == "" {
		util.CallValidationError(c, util.APIErrorParams{Msg: "Invalid department", Err: fmt.Errorf("name required")}, []string{"Department name required"})
		return false
	}
	taken, err := departmentNameTaken(db, name, excludeID)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to validate department", Err: err})
		return false
	}
	if taken {
		util.CallValidationError(c, util.APIErrorParams{Msg: "Invalid department", Err: fmt.Errorf("duplicate name")}, []string{"Department already exists"})
		return false
	}
	return true
}

// CreateDepartment godoc
// @Summary      Create a department (admin only)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body DepartmentRequest true "Department"
// @Success      201 {object} util.APIResponse{data=model.Department} "Department created"
// @Failure      400 {object} util.APIResponse "Invalid or duplicate name"
// @Failure      403 {object} util.APIResponse "Forbidden"
// @Router       /admin/departments [post]
func CreateDepartment(c *gin.Context) {
	var req DepartmentRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	name := util.NormalizeName(req.Name)
	if !validateDepartmentName(c, db, name, 0) {
		return
	}
	department := model.Department{Name: name, Description: strings.TrimSpace(req.Description)}
	if err := db.Create(&department).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create department", Err: err})
		return
	}
	util.CallSuccessCreated(c, util.APISuccessParams{Msg: "Department created", Data: department})
}

// UpdateDepartment godoc
// @Summary      Update a department (admin only)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Department ID"
// @Param        request body DepartmentRequest true "Department"
// @Success      200 {object} util.APIResponse{data=model.Department} "Department updated"
// @Failure      400 {object} util.APIResponse "Invalid or duplicate name"
// @Failure      404 {object} util.APIResponse "Department not found"
// @Router       /admin/departments/{id} [patch]
func UpdateDepartment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req DepartmentRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var department model.Department
	if !findOrRespond(c, db, &department, id, "Department") {
		return
	}

	if name := util.NormalizeName(req.Name); name != "" {
		if !validateDepartmentName(c, db, name, id) {
			return
		}
		department.Name = name
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		department.Description = desc
	}
	if err := db.Save(&department).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update department", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Department updated", Data: department})
}
