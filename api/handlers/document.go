package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pdf-analyzer/internal/models"
	"github.com/feichai0017/pdf-analyzer/internal/service/document"
	"github.com/feichai0017/pdf-analyzer/internal/utils/validator"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

type DocumentHandler struct {
	service   document.BatchProcessor
	validator *validator.DocumentValidator
	sizeLimit int64
	logger    logger.Logger
}

// BatchResponse 定义批处理响应结构
type BatchResponse struct {
	BatchID   string `json:"batchId"`
	Status    string `json:"status"`
	Documents int    `json:"documents"`
	CreatedAt string `json:"createdAt"`
}

// BatchEventResponse is one SSE "progress" payload.
type BatchEventResponse struct {
	BatchID string `json:"batchId"`
	models.BatchEvent
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string                         `json:"error,omitempty"`
	Message string                         `json:"message"`
	Details []*validator.ValidationResult `json:"details,omitempty"`
}

func NewDocumentHandler(service document.BatchProcessor, v *validator.DocumentValidator, sizeLimit int64, logger logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service:   service,
		validator: v,
		sizeLimit: sizeLimit,
		logger:    logger,
	}
}

// uploadedFiles 读取并验证上传的文件
func (h *DocumentHandler) uploadedFiles(c *gin.Context) ([]*multipart.FileHeader, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid form data", err)
		return nil, false
	}

	files := form.File["files"]
	if len(files) == 0 {
		h.handleError(c, http.StatusBadRequest, "No files provided", nil)
		return nil, false
	}

	results, err := h.validator.ValidateFiles(files)
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to read upload", err)
		return nil, false
	}
	var invalid []*validator.ValidationResult
	for _, r := range results {
		if !r.IsValid {
			invalid = append(invalid, r)
		}
	}
	if len(invalid) > 0 {
		h.logger.Warn("Rejected invalid upload", logger.Int("invalid", len(invalid)))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Only PDF files are accepted",
			Details: invalid,
		})
		return nil, false
	}

	return files, true
}

// SubmitBatch 异步批处理文档
func (h *DocumentHandler) SubmitBatch(c *gin.Context) {
	files, ok := h.uploadedFiles(c)
	if !ok {
		return
	}

	task, err := h.service.SubmitBatch(c.Request.Context(), files)
	if err != nil {
		h.handleServiceError(c, "Failed to submit batch", err)
		return
	}

	c.JSON(http.StatusAccepted, BatchResponse{
		BatchID:   task.ID,
		Status:    string(task.Status),
		Documents: task.Total,
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	})
}

// StreamBatch 同步处理文档并通过 SSE 推送进度
func (h *DocumentHandler) StreamBatch(c *gin.Context) {
	files, ok := h.uploadedFiles(c)
	if !ok {
		return
	}

	docs := make([]models.Document, 0, len(files))
	for _, header := range files {
		doc, err := h.readDocument(header)
		if err != nil {
			h.handleError(c, http.StatusBadRequest, "Failed to read upload", err)
			return
		}
		docs = append(docs, doc)
	}

	batchID, events := h.service.StreamBatch(c.Request.Context(), docs)

	c.Header("X-Batch-Id", batchID)
	c.Header("Cache-Control", "no-cache")
	// a client that goes away cancels the request context; the batch then
	// stops at the next document boundary
	for event := range events {
		c.SSEvent("progress", BatchEventResponse{BatchID: batchID, BatchEvent: event})
		c.Writer.Flush()
	}
	c.SSEvent("done", gin.H{"batchId": batchID})
	c.Writer.Flush()
}

// readDocument reads an upload into memory. Oversized files keep only their
// size; the batch reports them as skipped.
func (h *DocumentHandler) readDocument(header *multipart.FileHeader) (models.Document, error) {
	if header.Size > h.sizeLimit {
		return models.Document{Name: header.Filename, Size: header.Size}, nil
	}
	f, err := header.Open()
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to open file %s: %w", header.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to read file %s: %w", header.Filename, err)
	}
	return models.NewDocument(header.Filename, content), nil
}

// GetStatus 获取批处理状态
func (h *DocumentHandler) GetStatus(c *gin.Context) {
	batchID := c.Param("batchId")

	task, err := h.service.GetBatchStatus(c.Request.Context(), batchID)
	if err != nil {
		h.handleServiceError(c, "Failed to get status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"batchId":   task.ID,
		"status":    string(task.Status),
		"progress":  task.Progress,
		"completed": task.Completed,
		"total":     task.Total,
		"error":     task.Error,
		"createdAt": task.CreatedAt.Format(time.RFC3339),
		"updatedAt": task.UpdatedAt.Format(time.RFC3339),
	})
}

// DownloadReport 下载批处理报告
func (h *DocumentHandler) DownloadReport(c *gin.Context) {
	batchID := c.Param("batchId")

	report, err := h.service.GetBatchReport(c.Request.Context(), batchID)
	if err != nil {
		h.handleServiceError(c, "Failed to get report", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=report_%s.json", batchID))
	c.JSON(http.StatusOK, report)
}

// CancelBatch 取消批处理
func (h *DocumentHandler) CancelBatch(c *gin.Context) {
	batchID := c.Param("batchId")

	if err := h.service.CancelBatch(c.Request.Context(), batchID); err != nil {
		h.handleServiceError(c, "Failed to cancel batch", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Batch cancelled successfully",
		"batchId": batchID,
	})
}

// GetArtifact 下载单个文本产物
func (h *DocumentHandler) GetArtifact(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		h.handleError(c, http.StatusBadRequest, "Artifact key is required", nil)
		return
	}

	content, err := h.service.ReadArtifact(c.Request.Context(), key)
	if err != nil {
		h.handleServiceError(c, "Failed to read artifact", err)
		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}

func (h *DocumentHandler) handleServiceError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, document.ErrNotFound):
		h.handleError(c, http.StatusNotFound, message, err)
	case errors.Is(err, document.ErrQueueDisabled):
		h.handleError(c, http.StatusServiceUnavailable, message, err)
	default:
		h.handleError(c, http.StatusInternalServerError, message, err)
	}
}

// handleError 统一错误处理
func (h *DocumentHandler) handleError(c *gin.Context, status int, message string, err error) {
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, fields...)
	} else {
		h.logger.Warn(message, fields...)
	}

	response := ErrorResponse{
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(status, response)
}
