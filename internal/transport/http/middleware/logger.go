package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request. Long polls on the edit queue are
// logged at debug so they do not flood the file.
func RequestLogger(logger *zap.Logger, quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch _, isQuiet := quiet[c.FullPath()]; {
		case c.Writer.Status() >= 500:
			logger.Error("request failed", fields...)
		case isQuiet:
			logger.Debug("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
