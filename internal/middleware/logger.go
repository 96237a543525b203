package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/voicefeedback/backend/internal/logger"
)

// CustomLoggerMiddleware logs every HTTP request once it has been served
func CustomLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Start timer
		start := time.Now()

		// Process request
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		entry := logger.WithContext(map[string]interface{}{
			"component":  "api",
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    latency.String(),
			"client_ip":  c.ClientIP(),
			"request_id": GetRequestID(c),
		})

		line := fmt.Sprintf("[API] %s | %s | %d | %s | %s | req: %s",
			c.Request.Method,
			c.Request.URL.Path,
			status,
			latency.String(),
			c.ClientIP(),
			GetRequestID(c),
		)

		switch {
		case status >= 500:
			entry.Error(line)
		case status >= 400:
			entry.Warn(line)
		default:
			entry.Info(line)
		}
	}
}
