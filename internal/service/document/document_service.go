package document

import (
	"context"
	"errors"
	"iter"
	"mime/multipart"
	"time"

	"github.com/feichai0017/pdf-analyzer/internal/models"
	"github.com/feichai0017/pdf-analyzer/pkg/converters"
	"github.com/feichai0017/pdf-analyzer/pkg/queue"
)

var (
	// ErrNotFound is returned for unknown batches, reports and artifacts.
	ErrNotFound = errors.New("not found")
	// ErrQueueDisabled is returned by the async operations when no queue is configured.
	ErrQueueDisabled = errors.New("batch queue is not configured")
)

type BatchProcessor interface {
	// StreamBatch runs docs in the caller's goroutine as the sequence is ranged over.
	StreamBatch(ctx context.Context, docs []models.Document) (string, iter.Seq[models.BatchEvent])
	SubmitBatch(ctx context.Context, files []*multipart.FileHeader) (*models.ProcessingTask, error)
	HandleBatch(ctx context.Context, task *queue.Task) error
	GetBatchStatus(ctx context.Context, batchID string) (*models.ProcessingTask, error)
	GetBatchReport(ctx context.Context, batchID string) (*converters.BatchReport, error)
	CancelBatch(ctx context.Context, batchID string) error
	ReadArtifact(ctx context.Context, key string) (string, error)
	CleanupBefore(ctx context.Context, threshold time.Time) error
}
