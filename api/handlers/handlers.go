package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pdf-analyzer/internal/service/document"
	"github.com/feichai0017/pdf-analyzer/internal/utils/validator"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

type Handlers struct {
	Document *DocumentHandler
}

func NewHandlers(
	documentService document.BatchProcessor,
	sizeLimit int64,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Document: NewDocumentHandler(documentService, validator.NewDocumentValidator(logger, nil), sizeLimit, logger),
	}
}

// HealthCheck 健康检查
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
