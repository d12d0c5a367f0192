package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/carebridge-backend/internal/logger"
)

// RequestLogger logs one line per request through the structured
// logger, so request logs pick up the same redaction rules as the
// rest of the app.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	reqLog := log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		reqLog.Info("Request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
