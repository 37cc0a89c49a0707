package stt

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/repositories"
)

const defaultOpenAIModel = "gpt-4o-transcribe"

// OpenAIConfig holds configuration for the OpenAI transcription API
type OpenAIConfig struct {
	APIKey  string
	Model   string // default "gpt-4o-transcribe"
	BaseURL string // optional, for compatible gateways
}

// OpenAISpeechToText implements SpeechToText with the OpenAI audio API
type OpenAISpeechToText struct {
	config OpenAIConfig
	client *openai.Client
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*OpenAISpeechToText)(nil)

var openAIFormats = map[string]bool{
	"flac": true, "m4a": true, "mp3": true, "mp4": true, "mpeg": true,
	"mpga": true, "oga": true, "ogg": true, "wav": true, "webm": true,
}

// NewOpenAISpeechToText creates the provider. A missing API key is not an
// error here; Ready reports it so callers can refuse to process.
func NewOpenAISpeechToText(config OpenAIConfig, logger *zap.Logger) *OpenAISpeechToText {
	if config.Model == "" {
		config.Model = defaultOpenAIModel
		logger.Info("Using default OpenAI transcription model", zap.String("model", config.Model))
	}

	p := &OpenAISpeechToText{
		config: config,
		logger: logger,
	}
	if config.APIKey != "" {
		clientConfig := openai.DefaultConfig(config.APIKey)
		if config.BaseURL != "" {
			clientConfig.BaseURL = config.BaseURL
		}
		p.client = openai.NewClientWithConfig(clientConfig)
	}
	return p
}

func (o *OpenAISpeechToText) Name() string {
	return "openai"
}

func (o *OpenAISpeechToText) Accepts(ext string) bool {
	return openAIFormats[ext]
}

func (o *OpenAISpeechToText) Ready() error {
	if o.client == nil {
		return fmt.Errorf("%w: OpenAI API key not found. Please add OPENAI_API_KEY to your .env file", domain.ErrMissingCredential)
	}
	return nil
}

// TranscribeFile uploads the file to the transcription endpoint
func (o *OpenAISpeechToText) TranscribeFile(ctx context.Context, path string) (string, error) {
	if err := o.Ready(); err != nil {
		return "", err
	}

	o.logger.Debug("Transcribing with OpenAI",
		zap.String("file", path),
		zap.String("model", o.config.Model))

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.config.Model,
		FilePath: path,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}

func (o *OpenAISpeechToText) Close() error {
	return nil
}
