package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/pdf-analyzer/pkg/logger"
	"github.com/feichai0017/pdf-analyzer/pkg/queue"
)

// BatchHandler runs one queued batch.
type BatchHandler interface {
	HandleBatch(ctx context.Context, task *queue.Task) error
}

type BatchWorker struct {
	BaseWorker
	handler BatchHandler
}

func NewBatchWorker(cfg *Config, handler BatchHandler, log logger.Logger) (*BatchWorker, error) {
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("worker concurrency must be at least 1")
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
			ShutdownTimeout: 30 * time.Second,
		},
	)

	w := &BatchWorker{
		BaseWorker: BaseWorker{
			server: server,
			mux:    asynq.NewServeMux(),
			logger: log,
		},
		handler: handler,
	}

	// 注册任务处理器
	w.mux.HandleFunc(queue.TaskTypeBatchProcess, w.handleBatchProcess)
	return w, nil
}

func (w *BatchWorker) handleBatchProcess(ctx context.Context, t *asynq.Task) error {
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		// 无法解析的任务不重试
		return fmt.Errorf("failed to unmarshal task: %v: %w", err, asynq.SkipRetry)
	}

	if task.ID == "" {
		w.logger.Error("Invalid task data", logger.String("payload", string(t.Payload())))
		return fmt.Errorf("invalid task data: missing batch id: %w", asynq.SkipRetry)
	}

	w.logger.Info("Processing batch task",
		logger.String("batchId", task.ID),
		logger.Int("documents", len(task.Files)),
	)

	w.writeResult(t, `{"status":"running"}`)

	if err := w.handler.HandleBatch(ctx, &task); err != nil {
		w.logger.Error("Batch task failed",
			logger.String("batchId", task.ID),
			logger.Error(err),
		)
		w.writeResult(t, fmt.Sprintf(`{"status":"failed","error":%q}`, err.Error()))
		return err
	}

	w.writeResult(t, `{"status":"finished"}`)
	return nil
}

func (w *BatchWorker) writeResult(t *asynq.Task, result string) {
	rw := t.ResultWriter()
	if rw == nil {
		return
	}
	if _, err := rw.Write([]byte(result)); err != nil {
		w.logger.Error("Failed to write task result", logger.Error(err))
	}
}

// Start runs the asynq server until ctx is done.
func (w *BatchWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	w.logger.Info("Worker started")

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
