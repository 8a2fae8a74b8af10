package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/feichai0017/pdf-analyzer/config"
	"github.com/feichai0017/pdf-analyzer/internal/service/document"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
	"github.com/feichai0017/pdf-analyzer/pkg/worker"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		panic(err)
	}

	// 初始化日志
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(append(append([]string{}, cfg.Log.OutputPaths...), "logs/worker.log")),
		logger.WithInitialFields(map[string]interface{}{"service": "worker"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 创建文档服务
	docService, closeService, err := document.GetService(ctx, cfg, log, document.ServiceOptions{WithQueue: true})
	if err != nil {
		log.Error("Failed to create document service", logger.Error(err))
		os.Exit(1)
	}
	defer closeService()

	// 创建 worker
	batchWorker, err := worker.NewBatchWorker(&worker.Config{
		RedisAddr:   cfg.Redis.Addr,
		RedisDB:     cfg.Redis.DB,
		Concurrency: cfg.Redis.Concurrency,
		Queues:      cfg.Redis.Queues,
	}, docService, log)
	if err != nil {
		log.Error("Failed to create batch worker", logger.Error(err))
		os.Exit(1)
	}

	// 启动 worker
	if err := batchWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// 优雅关闭
	log.Info("Shutting down worker...")
	batchWorker.Stop()
}
