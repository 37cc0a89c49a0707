package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/adapters"
	"github.com/satriahrh/audioscribe/adapters/codec"
	"github.com/satriahrh/audioscribe/adapters/scratch"
	"github.com/satriahrh/audioscribe/adapters/stt"
	"github.com/satriahrh/audioscribe/domain/repositories"
	"github.com/satriahrh/audioscribe/internal/config"
	"github.com/satriahrh/audioscribe/internal/metrics"
	"github.com/satriahrh/audioscribe/usecase"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "audioscribe",
	Short: "Transcribe uploaded audio recordings",
	Long: `audioscribe turns audio recordings into text or PDF transcripts using a cloud
speech-to-text API or a local whisper.cpp model.

Run "audioscribe serve" for the upload page, or "audioscribe transcribe" to
process files from the command line.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
}

// app holds the wired components shared by the commands
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *scratch.Store
	provider repositories.SpeechToText
	batch    *usecase.BatchService
	sessions *adapters.MemorySessionRepository
	metrics  *metrics.Metrics
}

// newApp loads configuration and builds every component. The metrics
// instruments are passed in so serve can install an exporter first.
func newApp(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*app, error) {
	provider, err := stt.New(cfg.STT(), logger)
	if err != nil {
		return nil, err
	}

	store := scratch.NewStore(cfg.ScratchDir, logger)
	converter := codec.NewFFmpeg(cfg.FFmpegPath, logger)
	transcriber := usecase.NewTranscriptionService(provider, logger)
	batch := usecase.NewBatchService(transcriber, converter, store, m, cfg.Batch(), logger)

	if err := converter.Available(); err != nil {
		logger.Warn("Audio conversion unavailable, only natively supported formats will work", zap.Error(err))
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		provider: provider,
		batch:    batch,
		sessions: adapters.NewMemorySessionRepository(logger),
		metrics:  m,
	}, nil
}

func (a *app) Close() {
	if err := a.provider.Close(); err != nil {
		a.logger.Warn("Failed to close speech-to-text provider", zap.Error(err))
	}
}

// loadConfig reads configuration and builds the logger
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}
