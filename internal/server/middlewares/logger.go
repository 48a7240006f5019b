package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"

	"kds/board/pkg/logger"
)

// Logger 访问日志
func Logger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		ctx := c.Request.Context()

		switch {
		case status >= 500:
			log.Warnf(ctx, "[HTTP] %s %s %d %v", c.Request.Method, c.Request.URL.Path, status, latency)
		default:
			log.Debugf(ctx, "[HTTP] %s %s %d %v", c.Request.Method, c.Request.URL.Path, status, latency)
		}
	}
}
