package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pdf-analyzer/api/handlers"
	"github.com/feichai0017/pdf-analyzer/api/routes"
	"github.com/feichai0017/pdf-analyzer/config"
	"github.com/feichai0017/pdf-analyzer/internal/service/document"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		panic(err)
	}

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(append(append([]string{}, cfg.Log.OutputPaths...), "logs/app.log")),
		logger.WithInitialFields(map[string]interface{}{"service": "server"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// init document service
	docService, closeService, err := document.GetService(context.Background(), cfg, log, document.ServiceOptions{WithQueue: true})
	if err != nil {
		log.Fatal("Failed to get document service", logger.Error(err))
	}
	defer closeService()

	// init handlers
	h := handlers.NewHandlers(docService, cfg.Pipeline.SizeLimit, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, cfg.Server.AllowedOrigins, log)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	// start server
	go func() {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
