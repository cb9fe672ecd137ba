package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/prayer-schedule-api/pkg/middleware/requestid"
)

// Audit logs who performed a schedule mutation once the handler has run.
// Failed requests are logged at warn level so refused imports stay visible.
func Audit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("audit")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("actor", Claims(c).Actor()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		if c.Writer.Status() >= 400 {
			logger.Warn("schedule mutation refused", fields...)
			return
		}
		logger.Info("schedule mutation", fields...)
	}
}
