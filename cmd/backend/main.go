package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"message-board/internal/board"
	"message-board/internal/config"
	"message-board/internal/logging"
	"message-board/internal/server"
	"message-board/internal/uploads"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "service=backend msg=%q err=%v\n", "config_invalid", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "service=backend msg=%q err=%v\n", "logger_init_failed", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", "backend"))

	if err := run(cfg, log); err != nil {
		log.Error("exiting", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := newUploadStore(ctx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("upload store: %w", err)
	}
	if cfg.StoreBreakerFailures > 0 {
		store = uploads.NewBreakerStore(store, cfg.StoreBreakerFailures, cfg.StoreBreakerCooldown, log)
	}

	srv := server.New(server.Config{
		Addr:               cfg.Addr(),
		Version:            cfg.Version,
		StaticPage:         cfg.StaticPage,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Board:              board.New(),
		Uploads:            store,
		Logger:             log,
	})

	// Start the HTTP server in a background goroutine.
	// This allows us to listen for OS signals while the server runs.
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting",
			zap.String("addr", cfg.Addr()),
			zap.String("version", cfg.Version),
			zap.String("upload_backend", cfg.UploadBackend),
		)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting_down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info("shutdown_complete")
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}
}

// newUploadStore builds the configured upload backend.
func newUploadStore(ctx context.Context, cfg config.Config) (uploads.Store, error) {
	switch cfg.UploadBackend {
	case config.BackendMinio:
		return uploads.NewMinioStore(ctx, uploads.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
		})
	case config.BackendDisk, "":
		return uploads.NewDiskStore(cfg.UploadDir)
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.UploadBackend)
	}
}
