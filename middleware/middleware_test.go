package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariebrainware/hospital-appointment/config"
	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newInMemoryDB creates an in-memory sqlite DB with the account tables.
func newInMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb_middleware_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Session{}))
	return db
}

// seedAccount creates an account with one session token.
func seedAccount(t *testing.T, db *gorm.DB, username string, roleID uint32, token string, expiresAt time.Time) model.User {
	t.Helper()
	user := model.User{Username: username, Email: username + "@example.com", Password: "hashedpassword", RoleID: roleID}
	require.NoError(t, db.Create(&user).Error)
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}
	require.NoError(t, db.Create(&model.Session{
		SessionToken: token,
		UserID:       user.ID,
		ExpiresAt:    expiresAt,
		ClientIP:     "127.0.0.1",
		Browser:      "test-browser",
	}).Error)
	return user
}

type identity struct {
	userID uint
	roleID uint32
	set    bool
}

// runValidateLoginToken serves one request through ValidateLoginToken and
// reports the identity the handler saw.
func runValidateLoginToken(db *gorm.DB, token string) (*httptest.ResponseRecorder, identity) {
	var seen identity
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	if db != nil {
		r.Use(DatabaseMiddleware(db))
	}
	r.GET("/test", ValidateLoginToken(), func(c *gin.Context) {
		seen.userID, seen.set = GetUserID(c)
		seen.roleID, _ = GetRoleID(c)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest("GET", "/test", nil)
	if token != "" {
		req.Header.Set("session-token", token)
	}
	r.ServeHTTP(w, req)
	return w, seen
}

func setGinTestMode() {
	gin.SetMode(gin.TestMode)
}

func setupRedisMock(t *testing.T) redismock.ClientMock {
	rdb, mock := redismock.NewClientMock()
	config.SetRedisClientForTest(rdb)
	t.Cleanup(func() {
		config.ResetRedisClientForTest()
		_ = rdb.Close()
	})
	return mock
}

func TestDatabaseMiddlewareAndGetDB(t *testing.T) {
	setGinTestMode()
	db := &gorm.DB{}
	r := gin.New()
	r.Use(DatabaseMiddleware(db))
	r.GET("/testdb", func(c *gin.Context) {
		if GetDB(c) != db {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/testdb", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidateLoginToken_RejectsBeforeLookup(t *testing.T) {
	setGinTestMode()

	w, _ := runValidateLoginToken(&gorm.DB{}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = runValidateLoginToken(nil, "test-token")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestValidateLoginToken_RedisHit(t *testing.T) {
	setGinTestMode()
	mock := setupRedisMock(t)
	mock.ExpectGet("session:valid-token").SetVal("123:2")

	w, seen := runValidateLoginToken(&gorm.DB{}, "valid-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, identity{userID: 123, roleID: model.RoleIDDoctor, set: true}, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Unusable cache entries fall through to the sessions table.
func TestValidateLoginToken_RedisFallsBackToDB(t *testing.T) {
	setGinTestMode()
	tests := []struct {
		name   string
		cached string
		miss   bool
	}{
		{name: "non numeric user", cached: "abc:1"},
		{name: "missing separator", cached: "123"},
		{name: "zero user", cached: "0:1"},
		{name: "non numeric role", cached: "456:xyz"},
		{name: "key not found", miss: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock := setupRedisMock(t)
			exp := mock.ExpectGet("session:fallback-token")
			if tc.miss {
				exp.RedisNil()
			} else {
				exp.SetVal(tc.cached)
			}
			db := newInMemoryDB(t)
			user := seedAccount(t, db, "pat.fallback", model.RoleIDPatient, "fallback-token", time.Time{})

			w, seen := runValidateLoginToken(db, "fallback-token")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, identity{userID: user.ID, roleID: model.RoleIDPatient, set: true}, seen)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestValidateLoginToken_SessionsTable(t *testing.T) {
	setGinTestMode()
	config.ResetRedisClientForTest()
	t.Cleanup(config.ResetRedisClientForTest)

	db := newInMemoryDB(t)
	doctor := seedAccount(t, db, "dr.live", model.RoleIDDoctor, "live-token", time.Time{})
	seedAccount(t, db, "pat.expired", model.RoleIDPatient, "expired-token", time.Now().Add(-time.Hour))
	loggedOut := seedAccount(t, db, "pat.out", model.RoleIDPatient, "logged-out", time.Time{})
	require.NoError(t, db.Where("user_id = ?", loggedOut.ID).Delete(&model.Session{}).Error)
	removed := seedAccount(t, db, "dr.removed", model.RoleIDDoctor, "removed-token", time.Time{})
	require.NoError(t, db.Delete(&removed).Error)

	w, seen := runValidateLoginToken(db, "live-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, identity{userID: doctor.ID, roleID: model.RoleIDDoctor, set: true}, seen)

	for _, token := range []string{"expired-token", "logged-out", "removed-token", "unknown-token"} {
		w, seen = runValidateLoginToken(db, token)
		assert.Equal(t, http.StatusUnauthorized, w.Code, token)
		assert.False(t, seen.set, token)
	}
}

// runRoleRequest serves one request through RequireRole with cachedRole as
// the role the session layer supplied.
func runRoleRequest(t *testing.T, db *gorm.DB, userID uint, cachedRole uint32, roles ...uint32) int {
	t.Helper()
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Use(DatabaseMiddleware(db))
	r.GET("/guarded", func(c *gin.Context) {
		if userID != 0 {
			setIdentity(c, userID, cachedRole)
		}
		c.Next()
	}, RequireRole(roles...), func(c *gin.Context) {
		role, _ := GetRoleID(c)
		c.JSON(http.StatusOK, gin.H{"role_id": role})
	})
	r.ServeHTTP(w, httptest.NewRequest("GET", "/guarded", nil))
	return w.Code
}

func TestRequireRole(t *testing.T) {
	setGinTestMode()
	db := newInMemoryDB(t)
	patient := seedAccount(t, db, "pat.role", model.RoleIDPatient, "role-token", time.Time{})
	doctor := seedAccount(t, db, "dr.role", model.RoleIDDoctor, "doctor-token", time.Time{})

	tests := []struct {
		name       string
		userID     uint
		cachedRole uint32
		roles      []uint32
		want       int
	}{
		{"patient on patient route", patient.ID, model.RoleIDPatient, []uint32{model.RoleIDPatient}, http.StatusOK},
		{"stale admin role in session", patient.ID, model.RoleIDAdmin, []uint32{model.RoleIDAdmin}, http.StatusForbidden},
		{"doctor on shared route", doctor.ID, model.RoleIDDoctor, []uint32{model.RoleIDAdmin, model.RoleIDDoctor, model.RoleIDPatient}, http.StatusOK},
		{"doctor on patient route", doctor.ID, model.RoleIDDoctor, []uint32{model.RoleIDPatient}, http.StatusForbidden},
		{"deleted account", 9999, model.RoleIDAdmin, []uint32{model.RoleIDAdmin}, http.StatusUnauthorized},
		{"no identity", 0, 0, []uint32{model.RoleIDAdmin}, http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, runRoleRequest(t, db, tc.userID, tc.cachedRole, tc.roles...))
		})
	}
}

func TestRequireRole_FollowsRoleChange(t *testing.T) {
	setGinTestMode()
	db := newInMemoryDB(t)
	user := seedAccount(t, db, "pat.promoted", model.RoleIDPatient, "promo-token", time.Time{})

	assert.Equal(t, http.StatusForbidden, runRoleRequest(t, db, user.ID, model.RoleIDPatient, model.RoleIDDoctor))
	require.NoError(t, db.Model(&user).Update("role_id", model.RoleIDDoctor).Error)
	assert.Equal(t, http.StatusOK, runRoleRequest(t, db, user.ID, model.RoleIDPatient, model.RoleIDDoctor))
}

func TestGetUserIDAndRoleID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetUserID(c)
	assert.False(t, ok)
	_, ok = GetRoleID(c)
	assert.False(t, ok)
}

func TestCORSMiddleware(t *testing.T) {
	setGinTestMode()
	t.Setenv("CORS_ALLOW_ORIGINS", "")
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/departments", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/departments", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("OPTIONS", "/departments", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
}

func TestCORSMiddleware_ExplicitOrigins(t *testing.T) {
	setGinTestMode()
	t.Setenv("CORS_ALLOW_ORIGINS", "https://clinic.example, https://admin.example")
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/departments", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/departments", nil)
	req.Header.Set("Origin", "https://admin.example")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example" {
		t.Errorf("expected echoed origin, got %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/departments", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for unknown origin, got %d", w.Code)
	}
}
