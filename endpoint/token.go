package endpoint

import (
	"fmt"
	"time"

	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
)

type TokenInfo struct {
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidateToken godoc
// @Summary      Validate session token
// @Description  Validate if the session token is valid and not expired
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=TokenInfo} "Valid session token"
// @Failure      401 {object} util.APIResponse "Invalid or expired session token"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /token/validate [get]
func ValidateToken(c *gin.Context) {
	sessionToken := c.GetHeader("session-token")
	if sessionToken == "" {
		util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Invalid session token", Err: fmt.Errorf("session token not provided")})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var result struct {
		model.Session
		Username string
		RoleID   uint32
	}
	err := db.Table("sessions").
		Select("sessions.*, users.username, users.role_id").
		Joins("JOIN users ON sessions.user_id = users.id AND users.deleted_at IS NULL").
		Where("sessions.session_token = ? AND sessions.expires_at > ? AND sessions.deleted_at IS NULL", sessionToken, time.Now()).
		Take(&result).Error
	if err != nil {
		util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Session not found", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Valid session token",
		Data: TokenInfo{
			UserID:    result.UserID,
			Username:  result.Username,
			Role:      model.RoleNameFor(result.RoleID),
			ExpiresAt: result.ExpiresAt,
		},
	})
}
