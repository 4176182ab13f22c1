package handlers

import (
	"errors"
	"net/http"
	"strings"

	"teamhub/backend/internal/logger"
	"teamhub/backend/internal/middleware"
	"teamhub/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{services.ErrValidation, http.StatusBadRequest, "validation_error"},
	{services.ErrDuplicateRequest, http.StatusBadRequest, "duplicate_request"},
	{services.ErrAlreadyHandled, http.StatusBadRequest, "already_handled"},
	{services.ErrDuplicateEmail, http.StatusBadRequest, "duplicate_email"},
	{services.ErrAlreadyMember, http.StatusBadRequest, "already_member"},
	{services.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{services.ErrForbidden, http.StatusForbidden, "forbidden"},
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{services.ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
}

// respondError maps service errors onto HTTP statuses. Anything not in the
// taxonomy is logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{
				"error":   m.code,
				"message": strings.TrimPrefix(err.Error(), m.target.Error()+": "),
			})
			return
		}
	}

	_ = c.Error(err)
	logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "an unexpected error occurred",
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "validation_error",
		"message": message,
	})
}

// bindJSON decodes the body and writes a 400 on failure.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// currentUser returns the session identity, answering 401 when absent.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "authentication required",
		})
		return uuid.Nil, false
	}
	return id, true
}
