package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medic-workbook/backend/pkg/response"
)

// BodyLimit caps form payloads at maxBytes. Requests that declare a larger
// Content-Length are refused before any handler runs; chunked bodies hit
// the cap while binding and are answered by the handler via IsBodyTooLarge.
// maxBytes <= 0 disables the limit.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 || c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			RespondBodyTooLarge(c)
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// IsBodyTooLarge reports whether a bind error came from the BodyLimit cap.
func IsBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// RespondBodyTooLarge writes the 413 envelope.
func RespondBodyTooLarge(c *gin.Context) {
	response.Error(c, http.StatusRequestEntityTooLarge, 10005, "form payload too large")
}
