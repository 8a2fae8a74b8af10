package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pdf-analyzer/api/handlers"
	"github.com/feichai0017/pdf-analyzer/api/middleware"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, allowedOrigins []string, log logger.Logger) {
	// 全局中间件
	r.Use(middleware.RequestID(log))
	r.Use(middleware.CORS(allowedOrigins))

	// 健康检查
	r.GET("/health", handlers.HealthCheck)

	v1 := r.Group("/api/v1")

	// 批处理路由组
	batches := v1.Group("/batches")
	{
		batches.POST("", h.Document.SubmitBatch)
		batches.POST("/stream", h.Document.StreamBatch)
		batches.GET("/:batchId", h.Document.GetStatus)
		batches.GET("/:batchId/report", h.Document.DownloadReport)
		batches.DELETE("/:batchId", h.Document.CancelBatch)
	}

	v1.GET("/artifacts/*key", h.Document.GetArtifact)
}
