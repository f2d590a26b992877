package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/activity-point/api-go/services"
	"github.com/activity-point/api-go/utils"
	"github.com/gin-gonic/gin"
)

// respondError is the only place service errors become HTTP responses.
func respondError(c *gin.Context, err error) {
	var e *services.Error
	if !errors.As(err, &e) {
		e = &services.Error{Kind: services.KindStorage, Code: "internal_error", Message: "internal error", Err: err}
	}

	status := statusFor(e.Kind)
	body := gin.H{"success": false, "error": e.Code, "message": e.Message}
	if e.Retryable() {
		body["retryable"] = true
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation, services.KindConflict:
		return http.StatusBadRequest
	case services.KindPermissionDenied:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_input", "message": err.Error()})
}

// currentUserID aborts with 401 when the auth middleware did not run.
func currentUserID(c *gin.Context) (uint, bool) {
	user := utils.GetUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return 0, false
	}
	return user.UserID, true
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_input", "message": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func paginationMeta(page, pageSize int, total int64) *PaginationMeta {
	return &PaginationMeta{
		CurrentPage: page,
		PageSize:    pageSize,
		TotalItems:  total,
		TotalPages:  utils.TotalPages(total, pageSize),
	}
}
