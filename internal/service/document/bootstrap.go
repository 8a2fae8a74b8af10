package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/feichai0017/pdf-analyzer/config"
	"github.com/feichai0017/pdf-analyzer/internal/agent"
	"github.com/feichai0017/pdf-analyzer/internal/agent/generator"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
	"github.com/feichai0017/pdf-analyzer/pkg/queue"
	"github.com/feichai0017/pdf-analyzer/pkg/storage"
)

// ServiceOptions selects the optional collaborators GetService wires.
type ServiceOptions struct {
	// WithQueue connects to redis for SubmitBatch and the status operations.
	WithQueue bool
}

// GetService builds the batch service from cfg. The returned func releases
// the generator and queue connections.
func GetService(ctx context.Context, cfg *config.Config, log logger.Logger, opts ServiceOptions) (*DocumentService, func() error, error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	// 初始化存储
	store, err := storage.NewStorage(ctx, cfg.Storage, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// 初始化提取器
	extractor, err := agent.NewExtractor(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}

	// 初始化生成器, provider "none" 跳过派生文本
	var gen TextGenerator
	if p := strings.ToLower(cfg.Generator.Provider); p != "" && p != "none" {
		g, err := generator.New(ctx, cfg.Generator, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize generator: %w", err)
		}
		closers = append(closers, g.Close)
		gen = g
	} else {
		log.Warn("No generator configured, derived artifacts are skipped")
	}

	// 初始化队列
	var q queue.Queue
	if opts.WithQueue {
		aq, err := queue.NewAsynqQueue(&queue.QueueConfig{
			RedisAddr:      cfg.Redis.Addr,
			RedisDB:        cfg.Redis.DB,
			ProcessTimeout: queue.DefaultQueueConfig().ProcessTimeout,
			StatusTTL:      queue.DefaultQueueConfig().StatusTTL,
		})
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to initialize queue: %w", err)
		}
		closers = append(closers, aq.Close)
		q = aq
	}

	svc := NewService(extractor, gen, storage.NewArtifactStore(store, log), q, log, &ServiceConfig{
		Pipeline:      cfg.Pipeline,
		QueuePriority: 2,
	})
	return svc, closeAll, nil
}
