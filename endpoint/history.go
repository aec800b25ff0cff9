package endpoint

import (
	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// visitHistoryFor returns a patient's visits, newest first.
func visitHistoryFor(db *gorm.DB, patientID uint) ([]model.ListVisitHistoryResponse, error) {
	history := []model.ListVisitHistoryResponse{}
	err := db.Table("visit_histories").
		Select("visit_histories.*, users.username AS doctor_name").
		Joins("LEFT JOIN doctors ON doctors.id = visit_histories.doctor_id").
		Joins("LEFT JOIN users ON users.id = doctors.user_id").
		Where("visit_histories.patient_id = ?", patientID).
		Order("visit_histories.visit_date DESC, visit_histories.id DESC").
		Scan(&history).Error
	return history, err
}

// ListOwnHistory godoc
// @Summary      Own visit history
// @Tags         Patient
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=[]model.ListVisitHistoryResponse} "History retrieved"
// @Failure      404 {object} util.APIResponse "Profile not found"
// @Router       /patient/history [get]
func ListOwnHistory(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	patient, ok := currentPatient(c, db)
	if !ok {
		return
	}
	respondHistory(c, db, patient.ID)
}

// ListPatientHistory godoc
// @Summary      A patient's visit history (doctor)
// @Tags         Doctor
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Patient ID"
// @Success      200 {object} util.APIResponse{data=[]model.ListVisitHistoryResponse} "History retrieved"
// @Failure      404 {object} util.APIResponse "Patient not found"
// @Router       /doctor/patients/{id}/history [get]
func ListPatientHistory(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
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
	respondHistory(c, db, id)
}

func respondHistory(c *gin.Context, db *gorm.DB, patientID uint) {
	history, err := visitHistoryFor(db, patientID)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve visit history", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "History retrieved", Data: history})
}
