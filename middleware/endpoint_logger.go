package middleware

import (
	"fmt"
	"time"

	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates the client's X-Request-ID or assigns a new UUID. The id
// is echoed in the response and carried on the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, id)
		c.Request = c.Request.WithContext(util.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// EndpointCallLogger logs each HTTP request as an endpoint event. Mount it
// after RequestID so entries carry the correlation id.
func EndpointCallLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		userID, _ := GetUserID(c)
		roleID, _ := GetRoleID(c)

		details := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"raw_path":    c.Request.URL.Path,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"query":       c.Request.URL.RawQuery,
		}
		if roleID != 0 {
			details["role_id"] = roleID
		}

		var uid string
		if userID != 0 {
			uid = fmt.Sprintf("%d", userID)
		}
		util.LogSecurityEvent(util.SecurityEvent{
			EventType: util.EventEndpointCall,
			UserID:    uid,
			Account:   util.AccountLabel(GetDB(c), userID),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			RequestID: util.RequestIDFrom(c.Request.Context()),
			Message:   fmt.Sprintf("%s %s -> %d", c.Request.Method, c.Request.URL.Path, status),
			Details:   details,
		})
	}
}
