package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders hardens API responses. Progress, submissions and exports
// are one student's records, so nothing may be cached by browsers or proxies;
// handlers that stream (SSE) may override Cache-Control afterwards.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}
