package endpoint

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariebrainware/hospital-appointment/middleware"
	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupEndpointTestDB opens a migrated in-memory database unique to the test.
func setupEndpointTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	util.SetJWTSecret("test-secret-123")

	dsn := fmt.Sprintf("file:testdb_endpoint_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, model.Migrate(db))
	return db
}

// setupEndpointTest returns a Gin engine and database connection configured for endpoint tests.
func setupEndpointTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := setupEndpointTestDB(t)
	r := newTestRouter()
	r.Use(middleware.DatabaseMiddleware(db))
	return r, db
}

// newTestRouter returns a new Gin engine configured for tests.
// Use this for tests that don't need a DB injected.
func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// asUser sets the identity the auth middleware would have set.
func asUser(userID uint, roleID uint32) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Set(middleware.RoleIDKey, roleID)
		c.Next()
	}
}

func createAccount(t *testing.T, db *gorm.DB, username string, roleID uint32) model.User {
	t.Helper()
	hash, salt, err := util.HashNewPassword("password")
	require.NoError(t, err)
	u := model.User{Username: username, Email: username + "@example.com", Password: hash, PasswordSalt: salt, RoleID: roleID}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// assertStatus asserts that the response HTTP status code matches the expected value
func assertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, w.Code, w.Body.String())
}

// assertSuccessResponse asserts that the response indicates success with HTTP 200
func assertSuccessResponse(t *testing.T, w *httptest.ResponseRecorder, response map[string]interface{}) {
	t.Helper()
	assert.Equal(t, http.StatusOK, w.Code)
	if response == nil {
		return
	}
	if success, ok := response["success"].(bool); ok {
		assert.True(t, success)
	}
}
