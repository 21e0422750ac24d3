package middleware

import (
	"net/http"

	"notifyhub/internal/response"
	"notifyhub/internal/services"
	"notifyhub/pkg/logging"

	"github.com/gin-gonic/gin"
)

// RateLimitByIP rejects requests of a client IP once limiter refuses them.
// Limiter errors let the request through.
func RateLimitByIP(limiter services.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logging.Warnf("Rate limiter unavailable: %v", err)
			c.Next()
			return
		}
		if !allowed {
			response.AbortJSON(c, http.StatusTooManyRequests, "too many attempts, please try again later")
			return
		}
		c.Next()
	}
}
