package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"inquest/internal/redis"
)

// RateLimit enforces a fixed-window per-client request cap backed by redis.
// A limit of zero disables the middleware. Redis outages fail open so the
// limiter never takes the API down with it.
func RateLimit(cache *redis.Client, perMinute int, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		if perMinute <= 0 || cache == nil {
			c.Next()
			return
		}
		key := fmt.Sprintf("ratelimit:%s:%d", c.ClientIP(), time.Now().Unix()/60)
		count, err := cache.Incr(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			if err := cache.Expire(c.Request.Context(), key, time.Minute); err != nil {
				log.Warn("rate limiter expire failed", "error", err)
			}
		}
		if count > int64(perMinute) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, please slow down"})
			return
		}
		c.Next()
	}
}
