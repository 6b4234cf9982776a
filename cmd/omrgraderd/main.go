package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joseph-ayodele/omr-grader/constants"
	"github.com/joseph-ayodele/omr-grader/internal/common"
	"github.com/joseph-ayodele/omr-grader/internal/engine"
	"github.com/joseph-ayodele/omr-grader/internal/grading"
	"github.com/joseph-ayodele/omr-grader/internal/ledger"
	"github.com/joseph-ayodele/omr-grader/internal/queue"
	"github.com/joseph-ayodele/omr-grader/internal/server"
	"github.com/joseph-ayodele/omr-grader/internal/status"
	"github.com/joseph-ayodele/omr-grader/internal/worker"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	for _, dir := range []string{
		cfg.Storage.UploadsDir(),
		cfg.Storage.ResultsDir(),
		cfg.Storage.BatchesDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("create storage dir", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	if err := engine.ValidateTemplateFiles(cfg.Engine.TemplatePath, cfg.Engine.AnswerKeyPath); err != nil {
		logger.Error("grading template rejected", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := status.NewStore(cfg.Storage.BatchesDir(), logger)
	if err != nil {
		logger.Error("init status store", "error", err)
		os.Exit(1)
	}
	led, err := ledger.Open(filepath.Join(cfg.Storage.ResultsDir(), constants.MasterLedgerName), logger)
	if err != nil {
		logger.Error("open ledger", "error", err)
		os.Exit(1)
	}

	q := queue.New()
	proc := engine.NewCLIProcessor(cfg.Engine, logger)
	pool := worker.NewPool(q, store, led, proc, cfg.Storage.ResultsDir(), cfg.Worker.Count, logger)
	pool.Start(ctx)

	svc := grading.NewService(store, q, led, cfg.Storage.ResultsDir(), logger)
	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server.New(svc, cfg.Storage, logger).Routes(),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("omr grading api listening",
		"addr", cfg.Server.ListenAddr,
		"workers", cfg.Worker.Count,
		"storage", cfg.Storage.Root,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	stop()
	pool.Wait()
	logger.Info("shutdown complete")
}
