package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

// RateLimiter is a fixed-window counter per client IP kept in Redis, so every instance shares it.
type RateLimiter struct {
	redisClient *redis.Client
	limit       int
	window      time.Duration
	logger      logger.Interface
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration, log logger.Interface) *RateLimiter {
	if window < time.Second {
		window = time.Minute
	}
	return &RateLimiter{
		redisClient: redisClient,
		limit:       limit,
		window:      window,
		logger:      log,
	}
}

func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		windowBucket := time.Now().Unix() / int64(rl.window.Seconds())
		key := fmt.Sprintf("ratelimit:ip:%s:%d", c.ClientIP(), windowBucket)
		ctx := c.Request.Context()

		count, err := rl.redisClient.Incr(ctx, key).Result()
		if err != nil {
			// Redis down: let traffic through.
			rl.logger.Warnw("rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			rl.redisClient.Expire(ctx, key, rl.window+time.Second)
		}

		if count > int64(rl.limit) {
			c.Header("Retry-After", fmt.Sprint(int(rl.window.Seconds())))
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
