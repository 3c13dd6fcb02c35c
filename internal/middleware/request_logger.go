package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
)

// RequestLogger logs one structured line per request.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	reqLog := log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			reqLog.Error("Request failed", append(fields, "errors", c.Errors.String())...)
			return
		}
		reqLog.Info("Request handled", fields...)
	}
}
