package middleware

import (
	"time"

	"seatbook/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "request_id"
)

// RequestID propagates the caller's X-Request-ID or assigns a fresh one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs every request once it has been served. Server errors
// are logged again at error level with the first handler error attached.
func RequestLogger(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		reqLog := l.WithRequestID(c.GetString(RequestIDKey))
		reqLog.LogHTTPRequest(c, time.Since(start))

		if c.Writer.Status() >= 500 {
			if err := c.Errors.Last(); err != nil {
				reqLog.LogHTTPError(c, err.Err, c.Writer.Status())
			}
		}
	}
}
