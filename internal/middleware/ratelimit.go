package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/user/chat-proxy/internal/envelope"
	"github.com/user/chat-proxy/internal/store"
)

// RateLimitMiddleware caps requests per client IP per minute. Preflights are
// answered by CORSMiddleware before reaching this.
func RateLimitMiddleware(rlStore store.RateLimitStore, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		logger := Logger(c)

		current, err := rlStore.IncrementRPM(c.Request.Context(), clientIP)
		if err != nil {
			logger.Error("Rate limit check failed", "error", err, "client_ip", clientIP)
			c.AbortWithStatusJSON(http.StatusInternalServerError, envelope.NewError("Rate limit check failed"))
			return
		}

		if current > int64(limit) {
			logger.Warn("Rate limit exceeded (RPM)", "client_ip", clientIP, "limit", limit, "current", current)
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, envelope.NewError(fmt.Sprintf("Rate limit exceeded (RPM): limit %d", limit)))
			return
		}

		c.Next()
	}
}
