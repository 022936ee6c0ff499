package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/user/chat-proxy/internal/envelope"
)

// RecoveryMiddleware turns a handler panic into the standard 500 envelope with
// phase "general".
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		Logger(c).Error("Recovered from panic", "panic", recovered, "path", c.Request.URL.Path)
		ApplyCORS(c.Writer.Header())
		body := envelope.NewError(fmt.Sprintf("General error: %v", recovered)).WithStack().WithPhase("general")
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	})
}
