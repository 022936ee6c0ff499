package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
	loggerKey    = "logger"
)

// RequestIDMiddleware tags the request with the inbound X-Request-ID or a new
// uuid, echoes it in the response and stores a logger carrying it.
func RequestIDMiddleware(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(RequestIDHeader, id)
		c.Set(requestIDKey, id)
		c.Set(loggerKey, base.With("request_id", id))
		c.Next()
	}
}

// Logger returns the request-scoped logger, or slog.Default outside the
// middleware chain (e.g. handlers driven directly from tests).
func Logger(c *gin.Context) *slog.Logger {
	if val, exists := c.Get(loggerKey); exists {
		if l, ok := val.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}

func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
