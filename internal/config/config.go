// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/adapters/stt"
	"github.com/satriahrh/audioscribe/internal/cleanup"
	"github.com/satriahrh/audioscribe/internal/metrics"
	"github.com/satriahrh/audioscribe/usecase"
)

// Config holds every setting the service reads
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`
	Env  string `envconfig:"APP_ENV" default:"production"`

	ScratchDir     string        `envconfig:"SCRATCH_DIR" default:"temp_audio"`
	TempRetention  time.Duration `envconfig:"TEMP_RETENTION" default:"600s"`
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"600s"`
	Workers        int           `envconfig:"TRANSCRIBE_WORKERS" default:"4"`
	MaxUploadBytes int64         `envconfig:"MAX_UPLOAD_BYTES" default:"26214400"`

	SessionSecret string        `envconfig:"SESSION_SECRET"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"1h"`

	Provider string `envconfig:"STT_PROVIDER" default:"openai"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-transcribe"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	GoogleCredentials  string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
	GoogleLanguageCode string `envconfig:"GOOGLE_LANGUAGE_CODE" default:"en-US"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	WhisperModelPath string `envconfig:"WHISPER_MODEL_PATH"`
	WhisperLanguage  string `envconfig:"WHISPER_LANGUAGE" default:"en"`
	WhisperThreads   uint   `envconfig:"WHISPER_THREADS" default:"0"`

	FFmpegPath string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
}

// Load reads .env files (missing ones are ignored) and then the
// environment. With no arguments ".env" in the working directory is used.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("TRANSCRIBE_WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.TempRetention <= 0 {
		return fmt.Errorf("TEMP_RETENTION must be positive, got %s", c.TempRetention)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	provider := strings.ToLower(c.Provider)
	if provider != "whisper" && !slices.Contains(stt.Providers, provider) {
		return fmt.Errorf("STT_PROVIDER %q is not one of %s", c.Provider, strings.Join(stt.Providers, ", "))
	}
	return nil
}

// IsDevelopment reports whether APP_ENV selects development mode
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// STT returns the provider settings
func (c *Config) STT() stt.Config {
	return stt.Config{
		Provider: c.Provider,
		OpenAI: stt.OpenAIConfig{
			APIKey:  c.OpenAIAPIKey,
			Model:   c.OpenAIModel,
			BaseURL: c.OpenAIBaseURL,
		},
		Google: stt.GoogleConfig{
			CredentialsFile: c.GoogleCredentials,
			LanguageCode:    c.GoogleLanguageCode,
		},
		Gemini: stt.GeminiConfig{
			APIKey: c.GeminiAPIKey,
			Model:  c.GeminiModel,
		},
		Whisper: stt.WhisperCppConfig{
			ModelPath: c.WhisperModelPath,
			Language:  c.WhisperLanguage,
			Threads:   c.WhisperThreads,
		},
	}
}

// Batch returns the batch processor settings
func (c *Config) Batch() usecase.BatchConfig {
	return usecase.BatchConfig{
		Workers:   c.Workers,
		Retention: c.TempRetention,
	}
}

// Sweeper returns the background sweeper settings
func (c *Config) Sweeper() cleanup.Config {
	return cleanup.Config{
		Interval: c.SweepInterval,
		MaxAge:   c.TempRetention,
	}
}

// Metrics returns the exporter settings
func (c *Config) Metrics() metrics.Config {
	return metrics.Config{
		Endpoint: c.OTLPEndpoint,
		Insecure: c.OTLPInsecure,
	}
}

// NewLogger builds a production logger, or a development one when
// APP_ENV=development
func NewLogger(c *Config) (*zap.Logger, error) {
	if c != nil && c.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
