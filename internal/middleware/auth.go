package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/auth"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

// AccountLookup returns the current role of an account and fails when the account may no
// longer use the API.
type AccountLookup interface {
	ActiveRole(ctx context.Context, userID string) (string, error)
}

type AuthMiddleware struct {
	jwtService *auth.JWTService
	accounts   AccountLookup
	logger     logger.Interface
}

// NewAuthMiddleware verifies bearer tokens. With a non-nil accounts lookup every request also
// re-checks the account, so suspensions and role changes apply before the token expires.
func NewAuthMiddleware(jwtService *auth.JWTService, accounts AccountLookup, logger logger.Interface) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		accounts:   accounts,
		logger:     logger,
	}
}

// bearerToken reads the Authorization header. Event streams cannot set headers from the
// browser, so they may pass the token as ?access_token=.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if t := c.Query("access_token"); t != "" {
			return t, true
		}
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			utils.ErrorResponse(c, http.StatusUnauthorized, "missing or malformed authorization token")
			c.Abort()
			return
		}

		claims, err := m.jwtService.Verify(token)
		if err != nil {
			m.logger.Warnw("failed to verify token", "error", err)
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		if claims.TokenType != auth.TokenTypeAccess {
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid token type")
			c.Abort()
			return
		}

		role := claims.Role
		if m.accounts != nil {
			current, err := m.accounts.ActiveRole(c.Request.Context(), claims.UserID)
			if err != nil {
				utils.ErrorResponseWithError(c, err)
				c.Abort()
				return
			}
			role = current
		}

		c.Set(utils.ContextKeyUserID, claims.UserID)
		c.Set(utils.ContextKeyUserRole, role)

		c.Next()
	}
}
