package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"mime/multipart"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/pdf-analyzer/config"
	agentdoc "github.com/feichai0017/pdf-analyzer/internal/agent/document"
	"github.com/feichai0017/pdf-analyzer/internal/agent/document/text"
	"github.com/feichai0017/pdf-analyzer/internal/models"
	"github.com/feichai0017/pdf-analyzer/pkg/converters"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
	"github.com/feichai0017/pdf-analyzer/pkg/queue"
	"github.com/feichai0017/pdf-analyzer/pkg/storage"
)

const reportName = "report.json"

type DocumentService struct {
	extractor *agentdoc.Extractor
	generator TextGenerator
	artifacts *storage.ArtifactStore
	queue     queue.Queue
	converter *converters.JSONConverter
	logger    logger.Logger
	config    *ServiceConfig
}

type ServiceConfig struct {
	Pipeline config.PipelineConfig
	// QueuePriority selects the asynq queue batches are submitted to.
	QueuePriority int
}

// NewService builds the batch service. gen may be nil to skip derived
// artifacts; q may be nil when only StreamBatch is used.
func NewService(
	extractor *agentdoc.Extractor,
	gen TextGenerator,
	artifacts *storage.ArtifactStore,
	q queue.Queue,
	log logger.Logger,
	cfg *ServiceConfig,
) *DocumentService {
	if cfg == nil {
		cfg = &ServiceConfig{Pipeline: config.Default().Pipeline, QueuePriority: 2}
	}

	return &DocumentService{
		extractor: extractor,
		generator: gen,
		artifacts: artifacts,
		queue:     q,
		converter: converters.NewJSONConverter(),
		logger:    log,
		config:    cfg,
	}
}

// orchestrator returns an Orchestrator whose artifacts and transcripts are
// written below the batch id.
func (s *DocumentService) orchestrator(batchID string) *Orchestrator {
	writer := s.artifacts.WithPrefix(batchID)
	p := s.config.Pipeline
	return NewOrchestrator(
		s.extractor.WithTranscripts(writer),
		text.NewNormalizer(p.AggressiveCleanup),
		s.generator,
		writer,
		s.logger,
		OrchestratorConfig{
			SizeLimit:           p.SizeLimit,
			ArtifactConcurrency: p.ArtifactConcurrency,
			WriteSummary:        p.WriteSummary,
		},
	)
}

// StreamBatch 同步处理一批文档, 逐个返回进度事件
func (s *DocumentService) StreamBatch(ctx context.Context, docs []models.Document) (string, iter.Seq[models.BatchEvent]) {
	batchID := uuid.New().String()
	ctx = logger.WithBatchID(ctx, batchID)
	orch := s.orchestrator(batchID)

	return batchID, func(yield func(models.BatchEvent) bool) {
		s.logger.Info("Starting batch",
			logger.String("batchId", batchID),
			logger.Int("documents", len(docs)),
		)

		outcomes := make([]models.BatchItemOutcome, 0, len(docs))
		for event := range orch.Process(ctx, docs) {
			outcomes = append(outcomes, event.Outcome)
			if !yield(event) {
				return
			}
		}

		if _, err := s.saveReport(context.WithoutCancel(ctx), batchID, outcomes); err != nil {
			s.logger.Error("Failed to save batch report",
				logger.String("batchId", batchID),
				logger.Error(err),
			)
		}
	}
}

// SubmitBatch stages the uploads in storage and enqueues one batch task.
// Files over the size limit are not staged; the worker reports them as
// skipped.
func (s *DocumentService) SubmitBatch(ctx context.Context, files []*multipart.FileHeader) (*models.ProcessingTask, error) {
	if s.queue == nil {
		return nil, ErrQueueDisabled
	}

	batchID := uuid.New().String()
	refs := make([]queue.FileRef, 0, len(files))
	for i, header := range files {
		ref := queue.FileRef{Name: header.Filename, Size: header.Size}
		if header.Size <= s.config.Pipeline.SizeLimit {
			key, err := s.stageUpload(ctx, batchID, i, header)
			if err != nil {
				return nil, err
			}
			ref.Key = key
		}
		refs = append(refs, ref)
	}

	now := time.Now()
	task := &queue.Task{
		ID:        batchID,
		Type:      queue.TaskTypeBatchProcess,
		Priority:  s.config.QueuePriority,
		Files:     refs,
		Metadata:  map[string]string{"files": strconv.Itoa(len(refs))},
		CreatedAt: now,
	}

	// 保存初始状态
	if err := s.queue.SaveStatus(ctx, &queue.TaskStatus{
		TaskID:    batchID,
		Status:    string(models.StatusPending),
		Total:     len(refs),
		StartedAt: now,
	}); err != nil {
		s.logger.Error("Failed to save initial status",
			logger.String("batchId", batchID),
			logger.Error(err),
		)
	}

	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Error("Failed to enqueue batch",
			logger.String("batchId", batchID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to enqueue batch: %w", err)
	}

	s.logger.Info("Batch submitted",
		logger.String("batchId", batchID),
		logger.Int("documents", len(refs)),
	)

	return &models.ProcessingTask{
		ID:        batchID,
		Status:    models.StatusPending,
		Type:      task.Type,
		Total:     len(refs),
		Metadata:  task.Metadata,
		CreatedAt: now,
	}, nil
}

func (s *DocumentService) stageUpload(ctx context.Context, batchID string, index int, header *multipart.FileHeader) (string, error) {
	f, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", header.Filename, err)
	}
	defer f.Close()

	key := path.Join("uploads", batchID, fmt.Sprintf("%03d_%s", index, filepath.Base(header.Filename)))
	if _, err := s.artifacts.Storage().Store(ctx, f, key); err != nil {
		return "", fmt.Errorf("failed to store file %s: %w", header.Filename, err)
	}
	return key, nil
}

// HandleBatch 执行队列中的批处理任务 (worker side). Per-document failures,
// including a staged file that cannot be read, are part of the report.
func (s *DocumentService) HandleBatch(ctx context.Context, task *queue.Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("invalid task: missing batch id")
	}
	ctx = logger.WithBatchID(ctx, task.ID)
	log := logger.FromContext(ctx, s.logger)
	statusCtx := context.WithoutCancel(ctx)

	// 暂存文件在处理到对应文档时才读取
	docs := make([]models.Document, 0, len(task.Files))
	for _, ref := range task.Files {
		docs = append(docs, models.Document{Name: ref.Name, Size: ref.Size, Key: ref.Key})
	}

	startedAt := time.Now()
	s.saveStatus(statusCtx, &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    string(models.StatusRunning),
		Total:     len(docs),
		StartedAt: startedAt,
	})

	outcomes := make([]models.BatchItemOutcome, 0, len(docs))
	for event := range s.orchestrator(task.ID).WithLoader(s.artifacts).Process(ctx, docs) {
		outcomes = append(outcomes, event.Outcome)
		if event.Done() {
			continue
		}
		s.saveStatus(statusCtx, &queue.TaskStatus{
			TaskID:    task.ID,
			Status:    string(models.StatusRunning),
			Progress:  event.Progress,
			Completed: event.Completed,
			Total:     event.Total,
			StartedAt: startedAt,
		})
	}

	final := &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     string(converters.BatchStatus(outcomes)),
		Progress:   1.0,
		Completed:  len(outcomes),
		Total:      len(docs),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	if _, err := s.saveReport(statusCtx, task.ID, outcomes); err != nil {
		log.Error("Failed to save batch report", logger.Error(err))
		final.Error = err.Error()
	}
	s.saveStatus(statusCtx, final)

	for _, ref := range task.Files {
		if ref.Key == "" {
			continue
		}
		if err := s.artifacts.Storage().Delete(statusCtx, ref.Key); err != nil {
			log.Warn("Failed to delete staged upload", logger.String("key", ref.Key), logger.Error(err))
		}
	}

	log.Info("Batch task finished", logger.String("status", final.Status))
	return nil
}

func (s *DocumentService) saveStatus(ctx context.Context, status *queue.TaskStatus) {
	if s.queue == nil {
		return
	}
	if err := s.queue.SaveStatus(ctx, status); err != nil {
		s.logger.Error("Failed to save batch status",
			logger.String("batchId", status.TaskID),
			logger.Error(err),
		)
	}
}

func (s *DocumentService) saveReport(ctx context.Context, batchID string, outcomes []models.BatchItemOutcome) (string, error) {
	report, err := s.converter.Convert(batchID, outcomes)
	if err != nil {
		return "", err
	}
	data, err := s.converter.Marshal(report)
	if err != nil {
		return "", err
	}
	return s.artifacts.Storage().Store(ctx, bytes.NewReader(data), path.Join(batchID, reportName))
}

// GetBatchStatus 获取批处理状态
func (s *DocumentService) GetBatchStatus(ctx context.Context, batchID string) (*models.ProcessingTask, error) {
	if s.queue == nil {
		return nil, ErrQueueDisabled
	}

	status, err := s.queue.GetTaskStatus(ctx, batchID)
	if err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get batch status: %w", err)
	}

	return &models.ProcessingTask{
		ID:        status.TaskID,
		Status:    models.ProcessingStatus(status.Status),
		Type:      queue.TaskTypeBatchProcess,
		Progress:  status.Progress,
		Completed: status.Completed,
		Total:     status.Total,
		Error:     status.Error,
		Metadata:  make(map[string]string),
		CreatedAt: status.StartedAt,
		UpdatedAt: status.FinishedAt,
	}, nil
}

// GetBatchReport 获取批处理报告
func (s *DocumentService) GetBatchReport(ctx context.Context, batchID string) (*converters.BatchReport, error) {
	content, err := s.artifacts.Read(ctx, path.Join(batchID, reportName))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("report for batch %s: %w", batchID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report converters.BatchReport
	if err := json.Unmarshal([]byte(content), &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}

// CancelBatch 取消批处理
func (s *DocumentService) CancelBatch(ctx context.Context, batchID string) error {
	if s.queue == nil {
		return ErrQueueDisabled
	}
	if err := s.queue.CancelTask(ctx, batchID); err != nil {
		return fmt.Errorf("failed to cancel batch: %w", err)
	}

	s.logger.Info("Batch cancelled", logger.String("batchId", batchID))
	return nil
}

// ReadArtifact returns the artifact stored under key, e.g. "<batch>/<stem>_keywords.txt".
func (s *DocumentService) ReadArtifact(ctx context.Context, key string) (string, error) {
	content, err := s.artifacts.Read(ctx, key)
	if err != nil {
		if storage.IsNotFound(err) {
			return "", fmt.Errorf("artifact %s: %w", key, ErrNotFound)
		}
		return "", err
	}
	return content, nil
}

// CleanupBefore 清理过期的文件和结果
func (s *DocumentService) CleanupBefore(ctx context.Context, threshold time.Time) error {
	if err := s.artifacts.Storage().CleanupBefore(ctx, threshold); err != nil {
		return fmt.Errorf("failed to cleanup storage: %w", err)
	}

	s.logger.Info("Completed storage cleanup", logger.Time("threshold", threshold))
	return nil
}
