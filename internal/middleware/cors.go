package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORSHeaders are set on every response, streamed ones included.
var CORSHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type",
}

func ApplyCORS(h http.Header) {
	for k, v := range CORSHeaders {
		h.Set(k, v)
	}
}

// CORSMiddleware answers preflight requests with an empty 200 and stops the
// chain there; other requests get the headers and continue.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ApplyCORS(c.Writer.Header())
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// Preflight is registered as the OPTIONS handler of every route so the router
// matches them; CORSMiddleware has already answered by the time it would run.
func Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}
