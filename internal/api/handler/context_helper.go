package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	pkgerrors "medic-workbook/backend/pkg/errors"
	"medic-workbook/backend/pkg/response"
)

// MustGetUserID extracts user_id injected by JWTAuth.
// On failure it writes a 401 and returns false; the caller should return.
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "not authenticated")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "not authenticated")
		return "", false
	}
	return s, true
}

// MustGetRole extracts role injected by JWTAuth.
func MustGetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get("role")
	if !exists {
		response.Unauthorized(c, 10002, "not authenticated")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "not authenticated")
		return "", false
	}
	return s, true
}

// MustGetStudentParam reads the :id path parameter.
func MustGetStudentParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "student id is required")
		return "", false
	}
	return id, true
}

// handleStoreError answers infrastructure failures shared by every module.
func handleStoreError(c *gin.Context, err error) {
	if errors.Is(err, pkgerrors.ErrStoreUnavailable) {
		response.ServiceUnavailable(c, 50301, "progress store unavailable, try again later")
		return
	}
	response.InternalError(c)
}
