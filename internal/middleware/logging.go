package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

func CustomLogger(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
		}
		if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
			args = append(args, "request_id", requestID)
		}
		if userID := utils.GetUserID(c); userID != "" {
			args = append(args, "user_id", userID)
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			log.Errorw("HTTP request completed with server error", args...)
		case status >= 400:
			log.Warnw("HTTP request completed with client error", args...)
		default:
			log.Debugw("HTTP request completed", args...)
		}
	}
}
