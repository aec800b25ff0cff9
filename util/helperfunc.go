package util

import (
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Msg     string      `json:"msg"`
	Data    interface{} `json:"data"`
}

type APIErrorParams struct {
	Msg string
	Err error
}

type APISuccessParams struct {
	Msg  string
	Data interface{}
}

func callError(c *gin.Context, status int, params APIErrorParams, data interface{}) {
	errText := ""
	if params.Err != nil {
		errText = params.Err.Error()
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	c.JSON(status, APIResponse{
		Success: false,
		Error:   errText,
		Msg:     params.Msg,
		Data:    data,
	})
}

// CallErrorNotFound is for return API response not found
func CallErrorNotFound(c *gin.Context, params APIErrorParams) {
	callError(c, http.StatusNotFound, params, nil)
}

// CallUserError is for return error from user side
func CallUserError(c *gin.Context, params APIErrorParams) {
	callError(c, http.StatusBadRequest, params, nil)
}

// CallValidationError returns 400 with every validation message listed under data.errors.
func CallValidationError(c *gin.Context, params APIErrorParams, messages []string) {
	callError(c, http.StatusBadRequest, params, map[string]interface{}{"errors": messages})
}

// CallConflict returns 409 when the requested state change lost to a concurrent one.
func CallConflict(c *gin.Context, params APIErrorParams) {
	callError(c, http.StatusConflict, params, nil)
}

// CallForbidden returns 403 for an authenticated actor who may not touch the resource.
func CallForbidden(c *gin.Context, params APIErrorParams) {
	callError(c, http.StatusForbidden, params, nil)
}

// CallServerError is for return API response server error. The error is
// forwarded to Sentry when a hub is attached to the request.
func CallServerError(c *gin.Context, params APIErrorParams) {
	if params.Err != nil {
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(params.Err)
		} else {
			sentry.CaptureException(params.Err)
		}
	}
	callError(c, http.StatusInternalServerError, params, nil)
}

// CallSuccessOK is for return API response with status code 200, you need to specify msg, and data as function parameter
func CallSuccessOK(c *gin.Context, params APISuccessParams) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Msg:     params.Msg,
		Data:    params.Data,
	})
}

// CallSuccessCreated is CallSuccessOK with status 201.
func CallSuccessCreated(c *gin.Context, params APISuccessParams) {
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Msg:     params.Msg,
		Data:    params.Data,
	})
}

// CallUserNotAuthorized is for return API response with status code 401
func CallUserNotAuthorized(c *gin.Context, params APIErrorParams) {
	callError(c, http.StatusUnauthorized, params, nil)
}

// NormalizeName trims leading/trailing whitespace and collapses internal runs
// of whitespace, so "  Cardio   logy " and "Cardio logy" collide on uniqueness checks.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
