package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdfmerger/internal/bus"
	"pdfmerger/internal/config"
	"pdfmerger/internal/extractor"
	"pdfmerger/internal/handlers"
	"pdfmerger/internal/jobs"
	"pdfmerger/internal/merger"
	"pdfmerger/internal/metrics"
	"pdfmerger/internal/models"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg)
	defer closeLog()
	slog.SetDefault(logger)

	collector := metrics.NewCollector()
	hooks := collector.Hooks()

	if cfg.NATSURL != "" {
		client, err := bus.Connect(cfg.NATSURL)
		if err != nil {
			logger.Error("failed to connect to nats", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer client.Close()

		notifier := bus.NewNotifier(client, cfg.NATSSubject, logger)
		observe := hooks.Finished
		hooks.Finished = func(s models.Snapshot, elapsed time.Duration) {
			observe(s, elapsed)
			notifier.JobFinished(s, elapsed)
		}
		logger.Info("publishing job events", "url", cfg.NATSURL, "subject", cfg.NATSSubject)
	}

	registry := jobs.NewRegistry(logger, hooks)
	pool := merger.NewPool(cfg.MergeMaxParallel)
	mergeSvc := merger.NewService(logger, pool)
	pages := extractor.NewService(logger, cfg.PdftoppmPath, pool)
	if !pages.Available() {
		logger.Warn("pdftoppm not found, pdf to images is unavailable", "bin", cfg.PdftoppmPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry.StartEviction(ctx, cfg.CleanupInterval, cfg.JobTTL)

	app := handlers.NewApp(ctx, logger, registry, mergeSvc, pages, handlers.Options{
		APIKey:      cfg.APIKey,
		MaxUploadMB: cfg.MaxTotalUploadMB,
		StaticDir:   cfg.StaticDir,
		Metrics:     collector.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server started", "addr", cfg.Addr, "workers", pool.Size(), "job_ttl", cfg.JobTTL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}
	logger.Info("server stopped")
}
