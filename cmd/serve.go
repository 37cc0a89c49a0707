package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/internal/api"
	"github.com/satriahrh/audioscribe/internal/auth"
	"github.com/satriahrh/audioscribe/internal/cleanup"
	"github.com/satriahrh/audioscribe/internal/metrics"
	"github.com/satriahrh/audioscribe/internal/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload page and HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, shutdownMetrics, err := metrics.Setup(ctx, cfg.Metrics(), logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			logger.Warn("Failed to flush metrics", zap.Error(err))
		}
	}()

	a, err := newApp(cfg, logger, m)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.batch.Ready(); err != nil {
		logger.Warn("Transcription is not available until the prerequisite is fixed", zap.Error(err))
	}

	// Background sweep of temp files and idle sessions
	sweeper := cleanup.NewSweeper(a.store, a.sessions, m, cfg.Sweeper(), logger)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	hub := websocket.NewHub(logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, api.Dependencies{
		Batch:          a.batch,
		Sessions:       a.sessions,
		Tokens:         auth.NewTokenManager(cfg.SessionSecret, cfg.SessionTTL),
		Hub:            hub,
		MaxUploadBytes: cfg.MaxUploadBytes,
		SessionTTL:     cfg.SessionTTL,
	}, logger)

	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set, tokens will not survive a restart")
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("provider", a.provider.Name()),
		zap.String("scratch_dir", a.store.Dir()))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
		return err
	}

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited")
	return nil
}
