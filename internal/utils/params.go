package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
)

// Context keys set by the auth middleware.
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUserRole = "user_role"
)

// ParseUintParam reads a numeric path parameter such as :id.
func ParseUintParam(c *gin.Context, name, entityName string) (uint, error) {
	raw := c.Param(name)
	if raw == "" {
		return 0, apperrors.NewValidationError(entityName + " ID is required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewValidationError("invalid " + entityName + " ID")
	}
	return uint(id), nil
}

// GetUserID returns the authenticated user's ID, or "" outside an authenticated route.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

func GetUserRole(c *gin.Context) string {
	return c.GetString(ContextKeyUserRole)
}
