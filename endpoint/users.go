package endpoint

import (
	"fmt"
	"strings"

	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UpdateUserRequest struct {
	Username string `json:"username" example:"jdoe"`
	Email    string `json:"email" example:"john@example.com"`
	Password string `json:"password" example:"newpassword123"`
}

func (r UpdateUserRequest) empty() bool {
	return r.Username == "" && r.Email == "" && r.Password == ""
}

// applyAccountUpdate merges non-empty fields into user and validates the
// result. It returns the validation problems and whether the password changed.
func applyAccountUpdate(db *gorm.DB, user *model.User, req UpdateUserRequest) ([]string, bool, error) {
	merged := accountFields{Username: req.Username, Email: req.Email, Password: req.Password}
	merged.normalize()
	if merged.Username == "" {
		merged.Username = user.Username
	}
	if merged.Email == "" {
		merged.Email = user.Email
	}

	problems, err := validateAccount(db, merged, user.ID, true)
	if err != nil || len(problems) > 0 {
		return problems, false, err
	}

	user.Username = merged.Username
	user.Email = merged.Email
	if merged.Password == "" {
		return nil, false, nil
	}
	hash, salt, err := util.HashNewPassword(merged.Password)
	if err != nil {
		return nil, false, err
	}
	user.Password = hash
	user.PasswordSalt = salt
	return nil, true, nil
}

// invalidateUserSessions removes session records from both DB and Redis for a given user.
func invalidateUserSessions(c *gin.Context, db *gorm.DB, userID uint) {
	_ = db.Where("user_id = ?", userID).Delete(&model.Session{}).Error
	_ = util.InvalidateUserSessions(c.Request.Context(), userID)
}

// saveAccount validates and persists an account edit, answering the request.
func saveAccount(c *gin.Context, db *gorm.DB, user *model.User, req UpdateUserRequest) bool {
	problems, passwordChanged, err := applyAccountUpdate(db, user, req)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update account", Err: err})
		return false
	}
	if len(problems) > 0 {
		util.CallValidationError(c, util.APIErrorParams{Msg: "Update failed", Err: fmt.Errorf("invalid account fields")}, problems)
		return false
	}
	if err := db.Save(user).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update user", Err: err})
		return false
	}
	util.ForgetAccount(user.ID)
	if passwordChanged {
		invalidateUserSessions(c, db, user.ID)
	}
	return true
}

// UpdateUser godoc
// @Summary      Update current account
// @Description  Update authenticated user's username, email, and/or password. A password change signs out every session.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body UpdateUserRequest true "Update details"
// @Success      200 {object} util.APIResponse{data=model.User} "Update successful"
// @Failure      400 {object} util.APIResponse "Invalid request or duplicate username/email"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /user [patch]
func UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	if req.empty() {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "At least one field (username, email, or password) must be provided",
			Err: fmt.Errorf("no fields to update"),
		})
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
	if !saveAccount(c, db, &user, req) {
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "User updated successfully", Data: user})
}

// buildKeywordFilter returns the keyword filter string for search queries.
func buildKeywordFilter(keyword string) (string, []interface{}) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "", nil
	}
	kw := "%" + keyword + "%"
	return "username LIKE ? OR email LIKE ?", []interface{}{kw, kw}
}

// ListUsers godoc
// @Summary      List all users (admin only)
// @Description  Get a paginated list of users using cursor-based pagination. Admin-only access.
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        limit query int false "Limit number of results (default 10, max 100)"
// @Param        cursor query int false "Cursor for pagination (User ID)"
// @Param        keyword query string false "Search keyword for username or email"
// @Success      200 {object} util.APIResponse{data=object} "Users retrieved with cursor pagination"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      403 {object} util.APIResponse "Forbidden"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /admin/users [get]
func ListUsers(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	limit, cursor, offset := parsePaginationParams(c)

	query := db.Model(&model.User{})
	if clause, args := buildKeywordFilter(c.Query("keyword")); clause != "" {
		query = query.Where(clause, args...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to count users", Err: err})
		return
	}

	// one extra row tells whether another page exists
	query = applyPaginationQuery(query, "id", cursor, offset)
	var users []model.User
	if err := query.Order("id ASC").Limit(limit + 1).Find(&users).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve users", Err: err})
		return
	}

	hasMore := len(users) > limit
	if hasMore {
		users = users[:limit]
	}
	var nextCursor *uint
	if hasMore {
		lastID := users[len(users)-1].ID
		nextCursor = &lastID
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Users retrieved",
		Data: map[string]interface{}{
			"users":         users,
			"total":         total,
			"total_fetched": len(users),
			"has_more":      hasMore,
			"next_cursor":   nextCursor,
		},
	})
}
