package endpoint

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariebrainware/hospital-appointment/config"
	"github.com/ariebrainware/hospital-appointment/middleware"
	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxFailedAttempts = 5
	lockoutDuration   = 15 * time.Minute
)

type LoginRequest struct {
	// Username or email.
	Identifier string `json:"identifier" binding:"required" example:"jdoe"`
	Password   string `json:"password" binding:"required" example:"password123"`
}

type LoginResponse struct {
	Token     string    `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Role      string    `json:"role" example:"patient"`
	UserID    uint      `json:"user_id" example:"1"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login godoc
// @Summary      User login
// @Description  Authenticate with username or email and password
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} util.APIResponse{data=LoginResponse} "Login successful"
// @Failure      400 {object} util.APIResponse "Invalid credentials or account locked"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /login [post]
func Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	ci := clientInfo{IP: c.ClientIP(), Agent: c.Request.UserAgent()}
	ctx := loginContext{C: c, DB: db, Identifier: strings.TrimSpace(req.Identifier), CI: ci}

	user, ok := loadUserForLogin(ctx)
	if !ok {
		return
	}
	if !ensureAccountNotLocked(ctx, &user) {
		return
	}
	if !verifyPasswordOrRespond(ctx, &user, req.Password) {
		return
	}
	finalizeLogin(ctx, &user, req.Password)
}

type clientInfo struct {
	IP    string
	Agent string
}

type loginContext struct {
	C          *gin.Context
	DB         *gorm.DB
	Identifier string
	CI         clientInfo
}

func (ctx loginContext) fail(userID uint, reason string) {
	util.LogLoginFailure(util.LoginParams{UserID: userID, Account: ctx.Identifier, IP: ctx.CI.IP, UserAgent: ctx.CI.Agent, Reason: reason})
}

func loadUserForLogin(ctx loginContext) (model.User, bool) {
	var user model.User
	err := ctx.DB.Where("username = ? OR email = ?", ctx.Identifier, ctx.Identifier).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ctx.fail(0, "user not found")
		util.CallUserError(ctx.C, util.APIErrorParams{Msg: "Invalid credentials", Err: fmt.Errorf("user not found")})
		return model.User{}, false
	}
	if err != nil {
		ctx.fail(0, "database error")
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Database error", Err: err})
		return model.User{}, false
	}
	return user, true
}

func isAccountLocked(user *model.User) (bool, time.Time) {
	if user.LockedUntil != nil && *user.LockedUntil > time.Now().Unix() {
		return true, time.Unix(*user.LockedUntil, 0)
	}
	return false, time.Time{}
}

func ensureAccountNotLocked(ctx loginContext, user *model.User) bool {
	if locked, expiry := isAccountLocked(user); locked {
		ctx.fail(user.ID, "account locked")
		util.CallUserError(ctx.C, util.APIErrorParams{
			Msg: fmt.Sprintf("Account is locked until %s due to multiple failed login attempts", expiry.Format(time.RFC3339)),
			Err: fmt.Errorf("account locked"),
		})
		return false
	}
	return true
}

func verifyPasswordOrRespond(ctx loginContext, user *model.User, plain string) bool {
	match, err := util.VerifyPassword(plain, user.Password, user.PasswordSalt)
	if err != nil {
		ctx.fail(user.ID, "password verification error")
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Password verification failed", Err: err})
		return false
	}
	if !match {
		incrementFailedAttempts(ctx, user)
		ctx.fail(user.ID, "invalid password")
		util.CallUserError(ctx.C, util.APIErrorParams{Msg: "Invalid credentials", Err: fmt.Errorf("invalid password")})
		return false
	}
	return true
}

func incrementFailedAttempts(ctx loginContext, user *model.User) {
	user.FailedAttempts++
	updates := map[string]interface{}{"failed_attempts": user.FailedAttempts}
	if user.FailedAttempts >= maxFailedAttempts {
		lockUntil := time.Now().Add(lockoutDuration).Unix()
		user.LockedUntil = &lockUntil
		updates["locked_until"] = lockUntil
		util.LogAccountLocked(util.AccountLockParams{UserID: user.ID, Account: user.Username, IP: ctx.CI.IP, Reason: "too many failed login attempts"})
	}
	if err := ctx.DB.Model(user).Updates(updates).Error; err != nil {
		ctx.fail(user.ID, "failed to update failed attempts")
	}
}

func resetFailedAttempts(db *gorm.DB, user *model.User) error {
	if user.FailedAttempts == 0 && user.LockedUntil == nil {
		return nil
	}
	user.FailedAttempts = 0
	user.LockedUntil = nil
	return db.Model(user).Updates(map[string]interface{}{"failed_attempts": 0, "locked_until": nil}).Error
}

// upgradeLegacyPassword rehashes an HMAC-era password with argon2id.
func upgradeLegacyPassword(db *gorm.DB, user *model.User, plain string, ci clientInfo) {
	if !util.IsLegacyHash(user.Password) {
		return
	}
	hash, salt, err := util.HashNewPassword(plain)
	if err == nil {
		err = db.Model(user).Updates(map[string]interface{}{"password": hash, "password_salt": salt}).Error
	}
	if err != nil {
		util.LogSecurityEvent(util.SecurityEvent{EventType: util.EventSuspiciousActivity, UserID: fmt.Sprintf("%d", user.ID), Account: user.Username, IP: ci.IP, Message: fmt.Sprintf("Failed to upgrade password hash: %v", err)})
		return
	}
	util.LogSecurityEvent(util.SecurityEvent{EventType: util.EventPasswordUpgraded, UserID: fmt.Sprintf("%d", user.ID), Account: user.Username, IP: ci.IP, Message: "Upgraded password hash to Argon2"})
}

// createJWTToken signs the session token. The jti keeps tokens unique even
// for two logins of the same account within one second.
func createJWTToken(user model.User, expires time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", user.ID),
		"role": user.RoleID,
		"iat":  time.Now().Unix(),
		"exp":  expires.Unix(),
		"jti":  uuid.NewString(),
	})
	return token.SignedString(util.GetJWTSecretByte())
}

// SessionInfo groups parameters for creating a session.
type SessionInfo struct {
	UserID  uint
	Token   string
	Client  clientInfo
	Expires time.Time
}

func recordSession(db *gorm.DB, info SessionInfo) (model.Session, error) {
	session := model.Session{UserID: info.UserID, SessionToken: info.Token, ExpiresAt: info.Expires, ClientIP: info.Client.IP, Browser: info.Client.Agent}
	err := db.Create(&session).Error
	return session, err
}

func finalizeLogin(ctx loginContext, user *model.User, plain string) {
	if err := resetFailedAttempts(ctx.DB, user); err != nil {
		util.LogSecurityEvent(util.SecurityEvent{EventType: util.EventSuspiciousActivity, UserID: fmt.Sprintf("%d", user.ID), Account: user.Username, IP: ctx.CI.IP, Message: fmt.Sprintf("Failed to reset failed attempts: %v", err)})
	}
	upgradeLegacyPassword(ctx.DB, user, plain, ctx.CI)

	expires := time.Now().Add(config.LoadConfig().SessionTTL)
	tokenString, err := createJWTToken(*user, expires)
	if err != nil {
		ctx.fail(user.ID, "token generation failed")
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Could not generate token", Err: err})
		return
	}

	session, err := recordSession(ctx.DB, SessionInfo{UserID: user.ID, Token: tokenString, Client: ctx.CI, Expires: expires})
	if err != nil {
		ctx.fail(user.ID, "session creation failed")
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Failed to record session", Err: err})
		return
	}

	// the sessions table stays authoritative when the cache write fails
	_ = util.CacheSession(ctx.C.Request.Context(), tokenString, user.ID, user.RoleID, time.Until(session.ExpiresAt))
	_ = middleware.ResetRateLimit(ctx.C.Request.Context(), ctx.CI.IP, ctx.C.Request.URL.Path)

	util.LogLoginSuccess(util.LoginParams{UserID: user.ID, Account: user.Username, IP: ctx.CI.IP, UserAgent: ctx.CI.Agent})
	util.CallSuccessOK(ctx.C, util.APISuccessParams{
		Msg:  "Login successful",
		Data: LoginResponse{Token: tokenString, Role: user.RoleName(), UserID: user.ID, ExpiresAt: session.ExpiresAt},
	})
}

// Logout godoc
// @Summary      User logout
// @Description  Invalidate the current session token
// @Tags         Authentication
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse "Logout successful"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /logout [delete]
func Logout(c *gin.Context) {
	sessionToken := c.GetHeader("session-token")
	if sessionToken == "" {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Session token not provided",
			Err: fmt.Errorf("session token not provided"),
		})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var session model.Session
	if err := db.Where("session_token = ?", sessionToken).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Session not found", Err: err})
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load session", Err: err})
		return
	}
	if err := db.Delete(&session).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete session", Err: err})
		return
	}
	_ = util.RemoveSession(c.Request.Context(), session.UserID, sessionToken)

	util.LogLogout(util.LoginParams{UserID: session.UserID, Account: util.AccountLabel(db, session.UserID), IP: c.ClientIP(), UserAgent: c.Request.UserAgent()})
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Logout successful"})
}

type RegisterRequest struct {
	Username        string `json:"username" example:"jdoe"`
	Email           string `json:"email" example:"jdoe@example.com"`
	Password        string `json:"password" example:"s3cret"`
	Role            string `json:"role" example:"patient"`
	DepartmentID    uint   `json:"department_id" example:"1"`
	Specialization  string `json:"specialization" example:"Cardiology"`
	ExperienceYears int    `json:"experience_years" example:"5"`
	Age             int    `json:"age" example:"34"`
	Gender          string `json:"gender" example:"female"`
}

// Register godoc
// @Summary      Self-registration
// @Description  Create a patient or doctor account with its profile. Doctors must pick a department.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration details"
// @Success      201 {object} util.APIResponse{data=model.User} "Registration successful"
// @Failure      400 {object} util.APIResponse "Validation errors listed in data.errors"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /register [post]
func Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	acct := accountFields{Username: req.Username, Email: req.Email, Password: req.Password}
	acct.normalize()
	problems, err := validateAccount(db, acct, 0, false)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to validate registration", Err: err})
		return
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	roleID, known := model.RoleIDFor(role)
	if !known || roleID == model.RoleIDAdmin {
		problems = append(problems, "Please select a valid role")
	}
	if roleID == model.RoleIDDoctor {
		exists, err := departmentExists(db, req.DepartmentID)
		if err != nil {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to validate registration", Err: err})
			return
		}
		if !exists {
			problems = append(problems, "Please select a department for the doctor")
		}
	}
	if len(problems) > 0 {
		util.CallValidationError(c, util.APIErrorParams{Msg: "Registration failed", Err: fmt.Errorf("invalid registration")}, problems)
		return
	}

	user, err := newAccount(acct, roleID)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to hash password", Err: err})
		return
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if roleID == model.RoleIDDoctor {
			return tx.Create(&model.Doctor{
				UserID:          user.ID,
				DepartmentID:    req.DepartmentID,
				Specialization:  strings.TrimSpace(req.Specialization),
				ExperienceYears: req.ExperienceYears,
			}).Error
		}
		return tx.Create(&model.Patient{UserID: user.ID, Age: req.Age, Gender: strings.TrimSpace(req.Gender)}).Error
	})
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create account", Err: err})
		return
	}

	util.LogSignup(util.LoginParams{UserID: user.ID, Account: user.Username, IP: c.ClientIP(), UserAgent: c.Request.UserAgent(), Reason: role})
	util.CallSuccessCreated(c, util.APISuccessParams{Msg: "Registration successful. Please log in.", Data: user})
}

// VerifyPasswordRequest represents the request body for password verification
type VerifyPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// VerifyPassword godoc
// @Summary      Verify current user's password
// @Description  Validate the provided current password for the authenticated user
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body VerifyPasswordRequest true "Password to verify"
// @Success      200 {object} util.APIResponse "Password verified"
// @Failure      400 {object} util.APIResponse "Invalid request payload"
// @Failure      401 {object} util.APIResponse "Invalid password or unauthorized"
// @Failure      404 {object} util.APIResponse "User not found"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /verify-password [post]
func VerifyPassword(c *gin.Context) {
	var req VerifyPasswordRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var user model.User
	if !findOrRespond(c, db, &user, userID, "User") {
		return
	}

	match, err := util.VerifyPassword(req.Password, user.Password, user.PasswordSalt)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Password verification failed", Err: err})
		return
	}
	if !match {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Invalid password",
			Err: fmt.Errorf("provided password does not match"),
		})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Password verified",
		Data: map[string]bool{"verified": true},
	})
}
