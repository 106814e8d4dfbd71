package middleware

import (
	"errors"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

func Recovery(log logger.Interface) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if isBrokenConnection(recovered) {
			log.Warnw("connection broken during request",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", recovered)
			c.Abort()
			return
		}

		log.Errorw("panic recovered",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", recovered,
			"stack", string(debug.Stack()))

		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error occurred")
		c.Abort()
	})
}

func isBrokenConnection(recovered interface{}) bool {
	err, ok := recovered.(error)
	if !ok {
		return false
	}
	var ne *net.OpError
	if !errors.As(err, &ne) {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne.Err, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}

// ErrorHandler logs errors attached to the context, and answers for handlers that did not.
func ErrorHandler(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		log.Errorw("handler error occurred",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", err)

		if !c.Writer.Written() {
			utils.ErrorResponseWithError(c, err)
		}
	}
}
