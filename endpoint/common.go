package endpoint

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ariebrainware/hospital-appointment/booking"
	"github.com/ariebrainware/hospital-appointment/middleware"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func bindJSONOrRespond(c *gin.Context, dst interface{}, msg string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: msg, Err: err})
		return false
	}
	return true
}

func getDBOrRespond(c *gin.Context) (*gorm.DB, bool) {
	db := middleware.GetDB(c)
	if db == nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Database connection not available", Err: fmt.Errorf("db is nil")})
		return nil, false
	}
	return db.WithContext(c.Request.Context()), true
}

func requireUserID(c *gin.Context) (uint, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "User not authenticated", Err: fmt.Errorf("user id not found in context")})
		return 0, false
	}
	return userID, true
}

// parseIDParam parses a positive integer path parameter.
func parseIDParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer", name)
	}
	if id == 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return uint(id), nil
}

func idParamOrRespond(c *gin.Context, name string) (uint, bool) {
	id, err := parseIDParam(c, name)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: err.Error(), Err: err})
		return 0, false
	}
	return id, true
}

// findOrRespond loads dst by primary key, answering 404 or 500 on failure.
func findOrRespond(c *gin.Context, db *gorm.DB, dst interface{}, id uint, what string) bool {
	if err := db.First(dst, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: what + " not found", Err: err})
			return false
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve " + what, Err: err})
		return false
	}
	return true
}

// respondWorkflowError maps booking errors onto HTTP statuses.
func respondWorkflowError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		util.CallValidationError(c, util.APIErrorParams{Msg: msg, Err: err}, booking.ValidationMessages(err))
	case errors.Is(err, booking.ErrForbidden):
		util.CallForbidden(c, util.APIErrorParams{Msg: msg, Err: err})
	case errors.Is(err, booking.ErrNotFound):
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: msg, Err: err})
	case errors.Is(err, booking.ErrConflict):
		util.CallConflict(c, util.APIErrorParams{Msg: msg, Err: err})
	default:
		util.CallServerError(c, util.APIErrorParams{Msg: msg, Err: err})
	}
}

// parsePaginationParams extracts limit, cursor and offset query parameters.
func parsePaginationParams(c *gin.Context) (limit int, cursor uint, offset int) {
	limit = parsePositiveInt(c.Query("limit"), 10, 100)
	cursor = parseUintQuery(c, "cursor")
	offset = parsePositiveInt(c.Query("offset"), 0, 0)
	return limit, cursor, offset
}

// parsePositiveInt parses a positive integer from a query value returning a default
// when the value is missing or invalid. If max > 0 it caps the returned value.
func parsePositiveInt(q string, defaultVal, max int) int {
	if q == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(q)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// parseUintQuery parses an unsigned integer query parameter and returns 0 on error.
func parseUintQuery(c *gin.Context, name string) uint {
	s := c.Query(name)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return 0
	}
	return uint(v)
}

// applyPaginationQuery applies cursor or offset-based pagination on column.
func applyPaginationQuery(query *gorm.DB, column string, cursor uint, offset int) *gorm.DB {
	if cursor > 0 {
		return query.Where(column+" > ?", cursor)
	}
	if offset > 0 {
		return query.Offset(offset)
	}
	return query
}
