package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"kds/board/pkg/logger"
)

// HeaderRequestID 请求 ID 头
const HeaderRequestID = "X-Request-ID"

// TraceID 为每个请求分配 trace_id 并写入请求 Context，调用方传入的 X-Request-ID 优先
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(HeaderRequestID)
		if traceID == "" || len(traceID) > 64 {
			traceID = uuid.New().String()
		}

		ctx := logger.WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, traceID)

		c.Next()
	}
}
