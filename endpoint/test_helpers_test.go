package endpoint_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariebrainware/hospital-appointment/endpoint"
	"github.com/ariebrainware/hospital-appointment/middleware"
	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type apiResp struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

const testPassword = "password"

// SetupTestServer opens a migrated in-memory DB and returns the full router.
func SetupTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb_api_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, model.Migrate(db))

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.DatabaseMiddleware(db))
	endpoint.RegisterRoutes(r)
	return r, db
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, apiResp) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("session-token", token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var resp apiResp
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	}
	return rr, resp
}

func decodeData(t *testing.T, resp apiResp, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

func validationErrors(t *testing.T, resp apiResp) []string {
	t.Helper()
	var data struct {
		Errors []string `json:"errors"`
	}
	decodeData(t, resp, &data)
	return data.Errors
}

func seedAccount(t *testing.T, db *gorm.DB, username string, roleID uint32) model.User {
	t.Helper()
	hash, salt, err := util.HashNewPassword(testPassword)
	require.NoError(t, err)
	u := model.User{Username: username, Email: username + "@example.com", Password: hash, PasswordSalt: salt, RoleID: roleID}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedDepartment(t *testing.T, db *gorm.DB, name string) model.Department {
	t.Helper()
	d := model.Department{Name: name}
	require.NoError(t, db.Create(&d).Error)
	return d
}

func seedDoctor(t *testing.T, db *gorm.DB, username string, departmentID uint) (model.User, model.Doctor) {
	t.Helper()
	u := seedAccount(t, db, username, model.RoleIDDoctor)
	d := model.Doctor{UserID: u.ID, DepartmentID: departmentID, Specialization: "General practice"}
	require.NoError(t, db.Create(&d).Error)
	return u, d
}

func seedPatient(t *testing.T, db *gorm.DB, username string) (model.User, model.Patient) {
	t.Helper()
	u := seedAccount(t, db, username, model.RoleIDPatient)
	p := model.Patient{UserID: u.ID, Age: 30, Gender: "female"}
	require.NoError(t, db.Create(&p).Error)
	return u, p
}

func seedSlot(t *testing.T, db *gorm.DB, doctorID uint, date, start, end string) model.Availability {
	t.Helper()
	s := model.Availability{DoctorID: doctorID, Date: date, StartTime: start, EndTime: end}
	require.NoError(t, db.Create(&s).Error)
	return s
}

// login signs in and returns the session token.
func login(t *testing.T, r http.Handler, identifier string) string {
	t.Helper()
	rr, resp := doJSON(t, r, http.MethodPost, "/login", map[string]string{"identifier": identifier, "password": testPassword}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var data endpoint.LoginResponse
	decodeData(t, resp, &data)
	require.NotEmpty(t, data.Token)
	return data.Token
}

// clinic is a logged-in admin, doctor and patient sharing one department.
type clinic struct {
	db *gorm.DB
	r  *gin.Engine

	department model.Department
	doctor     model.Doctor
	patient    model.Patient

	adminToken   string
	doctorToken  string
	patientToken string
}

func newClinic(t *testing.T) *clinic {
	t.Helper()
	r, db := SetupTestServer(t)
	c := &clinic{db: db, r: r}
	c.department = seedDepartment(t, db, "Cardiology")
	seedAccount(t, db, "admin", model.RoleIDAdmin)
	_, c.doctor = seedDoctor(t, db, "dr.house", c.department.ID)
	_, c.patient = seedPatient(t, db, "jdoe")

	c.adminToken = login(t, r, "admin")
	c.doctorToken = login(t, r, "dr.house")
	c.patientToken = login(t, r, "jdoe")
	return c
}

func (c *clinic) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, apiResp) {
	t.Helper()
	return doJSON(t, c.r, method, path, body, token)
}

func (c *clinic) book(t *testing.T, slotID uint) model.Appointment {
	t.Helper()
	rr, resp := c.do(t, http.MethodPost, "/patient/appointments", map[string]interface{}{
		"department_id":   c.department.ID,
		"doctor_id":       c.doctor.ID,
		"availability_id": slotID,
	}, c.patientToken)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var appt model.Appointment
	decodeData(t, resp, &appt)
	return appt
}

func (c *clinic) reloadSlot(t *testing.T, id uint) model.Availability {
	t.Helper()
	var s model.Availability
	require.NoError(t, c.db.First(&s, id).Error)
	return s
}

func (c *clinic) reloadAppointment(t *testing.T, id uint) model.Appointment {
	t.Helper()
	var a model.Appointment
	require.NoError(t, c.db.Unscoped().First(&a, id).Error)
	return a
}
