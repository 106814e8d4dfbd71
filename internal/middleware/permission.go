package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/auth"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

type PermissionMiddleware struct {
	enforcer *auth.Enforcer
	logger   logger.Interface
}

func NewPermissionMiddleware(enforcer *auth.Enforcer, logger logger.Interface) *PermissionMiddleware {
	return &PermissionMiddleware{
		enforcer: enforcer,
		logger:   logger,
	}
}

// Authorize checks the caller's role against the route pattern and method.
func (m *PermissionMiddleware) Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := utils.GetUserID(c)
		if userID == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
			c.Abort()
			return
		}

		role := utils.GetUserRole(c)
		path := c.Request.URL.Path
		allowed, err := m.enforcer.Enforce(role, path, c.Request.Method)
		if err != nil {
			m.logger.Errorw("permission check failed", "error", err, "user_id", userID, "path", path)
			utils.ErrorResponse(c, http.StatusInternalServerError, "permission check failed")
			c.Abort()
			return
		}

		if !allowed {
			m.logger.Warnw("permission denied", "user_id", userID, "role", role, "path", path, "method", c.Request.Method)
			utils.ErrorResponse(c, http.StatusForbidden, "insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}
