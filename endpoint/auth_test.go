package endpoint_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/ariebrainware/hospital-appointment/endpoint"
	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPatientCreatesProfile(t *testing.T) {
	r, db := SetupTestServer(t)

	rr, resp := doJSON(t, r, http.MethodPost, "/register", map[string]interface{}{
		"username": "  newbie ",
		"email":    "newbie@example.com",
		"password": "s3cret",
		"role":     "patient",
		"age":      28,
		"gender":   "male",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.True(t, resp.Success)

	var user model.User
	require.NoError(t, db.Where("username = ?", "newbie").First(&user).Error)
	assert.Equal(t, model.RoleIDPatient, user.RoleID)
	assert.False(t, util.IsLegacyHash(user.Password))

	var patient model.Patient
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&patient).Error)
	assert.Equal(t, 28, patient.Age)
}

func TestRegisterDoctorNeedsDepartment(t *testing.T) {
	r, db := SetupTestServer(t)

	rr, resp := doJSON(t, r, http.MethodPost, "/register", map[string]interface{}{
		"username": "dr.who", "email": "who@example.com", "password": "tardis", "role": "doctor",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, validationErrors(t, resp), "Please select a department for the doctor")

	dept := seedDepartment(t, db, "General")
	rr, _ = doJSON(t, r, http.MethodPost, "/register", map[string]interface{}{
		"username": "dr.who", "email": "who@example.com", "password": "tardis", "role": "doctor",
		"department_id": dept.ID, "specialization": "Time", "experience_years": 900,
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var user model.User
	require.NoError(t, db.Where("username = ?", "dr.who").First(&user).Error)
	assert.Equal(t, model.RoleIDDoctor, user.RoleID)
	var doctor model.Doctor
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&doctor).Error)
	assert.Equal(t, dept.ID, doctor.DepartmentID)
	assert.Equal(t, 900, doctor.ExperienceYears)
}

func TestRegisterReportsEveryProblem(t *testing.T) {
	r, db := SetupTestServer(t)
	seedAccount(t, db, "taken", model.RoleIDPatient)

	rr, resp := doJSON(t, r, http.MethodPost, "/register", map[string]interface{}{
		"username": "taken", "email": "nope", "password": "abc", "role": "admin",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.ElementsMatch(t, []string{
		"Valid email required",
		"Password required (min 4 characters)",
		"Username already exists",
		"Please select a valid role",
	}, validationErrors(t, resp))

	var count int64
	db.Model(&model.User{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestLoginWithUsernameOrEmail(t *testing.T) {
	r, db := SetupTestServer(t)
	user := seedAccount(t, db, "jdoe", model.RoleIDPatient)

	for _, identifier := range []string{"jdoe", "jdoe@example.com"} {
		rr, resp := doJSON(t, r, http.MethodPost, "/login", map[string]string{"identifier": identifier, "password": testPassword}, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var data endpoint.LoginResponse
		decodeData(t, resp, &data)
		assert.Equal(t, "patient", data.Role)
		assert.Equal(t, user.ID, data.UserID)
		assert.WithinDuration(t, time.Now().Add(time.Hour), data.ExpiresAt, time.Minute)
	}

	var sessions int64
	db.Model(&model.Session{}).Where("user_id = ?", user.ID).Count(&sessions)
	assert.EqualValues(t, 2, sessions)
}

func TestLoginLocksAccountAfterRepeatedFailures(t *testing.T) {
	r, db := SetupTestServer(t)
	user := seedAccount(t, db, "victim", model.RoleIDPatient)

	for i := 0; i < 5; i++ {
		rr, resp := doJSON(t, r, http.MethodPost, "/login", map[string]string{"identifier": "victim", "password": "wrong"}, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid credentials", resp.Msg)
	}

	require.NoError(t, db.First(&user, user.ID).Error)
	require.NotNil(t, user.LockedUntil)
	assert.Greater(t, *user.LockedUntil, time.Now().Unix())

	// the right password is refused while locked
	rr, resp := doJSON(t, r, http.MethodPost, "/login", map[string]string{"identifier": "victim", "password": testPassword}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, resp.Msg, "Account is locked")
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	r, db := SetupTestServer(t)
	user := model.User{Username: "old", Email: "old@example.com", Password: util.HashPassword(testPassword), RoleID: model.RoleIDPatient}
	require.NoError(t, db.Create(&user).Error)

	rr, _ := doJSON(t, r, http.MethodPost, "/login", map[string]string{"identifier": "old", "password": testPassword}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.NoError(t, db.First(&user, user.ID).Error)
	assert.False(t, util.IsLegacyHash(user.Password))
	assert.NotEmpty(t, user.PasswordSalt)
	ok, err := util.VerifyPassword(testPassword, user.Password, user.PasswordSalt)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLogoutEndsSession(t *testing.T) {
	r, db := SetupTestServer(t)
	seedAccount(t, db, "jdoe", model.RoleIDPatient)
	token := login(t, r, "jdoe")

	rr, resp := doJSON(t, r, http.MethodGet, "/token/validate", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, resp.Success)

	rr, _ = doJSON(t, r, http.MethodDelete, "/logout", nil, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr, _ = doJSON(t, r, http.MethodGet, "/token/validate", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr, _ = doJSON(t, r, http.MethodDelete, "/logout", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestProtectedRoutesRequireRole(t *testing.T) {
	c := newClinic(t)

	rr, _ := c.do(t, http.MethodGet, "/admin/users", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = c.do(t, http.MethodGet, "/admin/users", nil, c.patientToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, _ = c.do(t, http.MethodGet, "/doctor/appointments", nil, c.patientToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, _ = c.do(t, http.MethodGet, "/patient/appointments", nil, c.doctorToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, _ = c.do(t, http.MethodGet, "/admin/users", nil, c.adminToken)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRoleChangeTakesEffectImmediately(t *testing.T) {
	c := newClinic(t)

	rr, _ := c.do(t, http.MethodGet, "/patient/profile", nil, c.patientToken)
	require.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, c.db.Model(&model.User{}).Where("id = ?", c.patient.UserID).Update("role_id", model.RoleIDDoctor).Error)
	rr, _ = c.do(t, http.MethodGet, "/patient/profile", nil, c.patientToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
