package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Context keys set by ValidateLoginToken.
const (
	UserIDKey = "user_id"
	RoleIDKey = "role_id"

	sessionHeader = "session-token"
)

// ValidateLoginToken resolves the session-token header to a user and role,
// trying the Redis cache first and the sessions table second.
func ValidateLoginToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(sessionHeader)
		if token == "" {
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Session token required",
				Err: fmt.Errorf("missing %s header", sessionHeader),
			})
			c.Abort()
			return
		}

		db := GetDB(c)
		if db == nil {
			util.CallServerError(c, util.APIErrorParams{
				Msg: "Database connection not available",
				Err: errors.New("db missing from context"),
			})
			c.Abort()
			return
		}

		userID, roleID, found, err := util.LookupSession(c.Request.Context(), token)
		if err == nil && found && userID != 0 {
			setIdentity(c, userID, roleID)
			c.Next()
			return
		}

		var row struct {
			UserID uint
			RoleID uint32
		}
		err = db.WithContext(c.Request.Context()).
			Table("sessions").
			Select("sessions.user_id, users.role_id").
			Joins("JOIN users ON users.id = sessions.user_id AND users.deleted_at IS NULL").
			Where("sessions.session_token = ? AND sessions.expires_at > ? AND sessions.deleted_at IS NULL", token, time.Now()).
			Take(&row).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				util.CallServerError(c, util.APIErrorParams{Msg: "Failed to validate session", Err: err})
				c.Abort()
				return
			}
			util.LogUnauthorizedAccess(util.UnauthorizedAccessParams{
				IP:        c.ClientIP(),
				RequestID: util.RequestIDFrom(c.Request.Context()),
				Resource:  c.Request.URL.Path,
				Reason:    "invalid or expired session",
			})
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Invalid or expired session",
				Err: errors.New("session not found"),
			})
			c.Abort()
			return
		}

		setIdentity(c, row.UserID, row.RoleID)
		c.Next()
	}
}

func setIdentity(c *gin.Context, userID uint, roleID uint32) {
	c.Set(UserIDKey, userID)
	c.Set(RoleIDKey, roleID)
}

// GetUserID returns the authenticated user id.
func GetUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// GetRoleID returns the role id cached with the session.
func GetRoleID(c *gin.Context) (uint32, bool) {
	v, ok := c.Get(RoleIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint32)
	return id, ok
}

// RequireRole admits only accounts whose current role is one of roleIDs. The
// role is re-read from the users table, so a cached session cannot outlive a
// role change or account deletion.
func RequireRole(roleIDs ...uint32) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Authentication required",
				Err: errors.New("no authenticated user"),
			})
			c.Abort()
			return
		}

		db := GetDB(c)
		if db == nil {
			util.CallServerError(c, util.APIErrorParams{
				Msg: "Database connection not available",
				Err: errors.New("db missing from context"),
			})
			c.Abort()
			return
		}
		var user model.User
		err := db.WithContext(c.Request.Context()).Select("id", "role_id").First(&user, userID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				util.CallUserNotAuthorized(c, util.APIErrorParams{
					Msg: "Account no longer exists",
					Err: err,
				})
			} else {
				util.CallServerError(c, util.APIErrorParams{Msg: "Failed to verify role", Err: err})
			}
			c.Abort()
			return
		}

		for _, id := range roleIDs {
			if user.RoleID == id {
				c.Set(RoleIDKey, user.RoleID)
				c.Next()
				return
			}
		}

		util.LogUnauthorizedAccess(util.UnauthorizedAccessParams{
			UserID:    fmt.Sprintf("%d", userID),
			IP:        c.ClientIP(),
			RequestID: util.RequestIDFrom(c.Request.Context()),
			Resource:  c.Request.URL.Path,
			Reason:    fmt.Sprintf("role %s not permitted", model.RoleNameFor(user.RoleID)),
		})
		util.CallForbidden(c, util.APIErrorParams{
			Msg: "You do not have permission to access this resource",
			Err: errors.New("forbidden"),
		})
		c.Abort()
	}
}
