package routers

import (
	"github.com/gin-gonic/gin"

	"kds/board/internal/server/handlers/board"
	"kds/board/internal/server/middlewares"
	"kds/board/pkg/logger"
)

// SetupRoutes 配置所有路由，使用 Route Group 分类
func SetupRoutes(boardHandler *board.BoardHandler, log logger.Logger) *gin.Engine {
	r := gin.New()

	r.Use(middlewares.TraceID())
	r.Use(middlewares.Logger(log))
	r.Use(middlewares.ErrorHandler(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "board",
			"message": "Service is running",
		})
	})

	v1 := r.Group("/api/v1")
	{
		b := v1.Group("/board")
		{
			b.GET("", boardHandler.Get)
			b.PUT("/filter", boardHandler.SetFilter)
			b.GET("/notices", boardHandler.Notices)
			b.POST("/orders/:id/start-preparing", boardHandler.StartPreparing)
			b.POST("/orders/:id/mark-ready", boardHandler.MarkReady)
			b.GET("/orders/:id/actions", boardHandler.Actions)
		}
	}

	return r
}
