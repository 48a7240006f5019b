package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kds/board/pkg/ginx"
	"kds/board/pkg/logger"
)

// ErrorHandler 统一错误处理中间件：捕获 panic 和未写响应的 c.Errors
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf(c.Request.Context(), "[HTTP] Panic recovered: %v", r)
				c.Abort()
				ginx.InternalError(c, "internal error")
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			log.Errorf(c.Request.Context(), "[HTTP] Request failed: %v", err.Err)
			ginx.Error(c, http.StatusInternalServerError, err.Error())
		}
	}
}
