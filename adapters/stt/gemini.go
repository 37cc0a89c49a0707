package stt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/repositories"
)

const (
	defaultGeminiModel = "gemini-2.0-flash"

	geminiTranscribePrompt = "Transcribe the speech in this audio verbatim. " +
		"Reply with the transcript only, without commentary or timestamps. " +
		"If there is no intelligible speech, reply with nothing."
)

// GeminiConfig holds configuration for transcription through Gemini
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiSpeechToText implements SpeechToText by sending the audio inline
// to a Gemini model
type GeminiSpeechToText struct {
	config GeminiConfig
	logger *zap.Logger

	once      sync.Once
	client    *genai.Client
	clientErr error
}

var _ repositories.SpeechToText = (*GeminiSpeechToText)(nil)

var geminiMIMETypes = map[string]string{
	"wav":  "audio/wav",
	"mp3":  "audio/mp3",
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
	"aac":  "audio/aac",
}

// NewGeminiSpeechToText creates the provider
func NewGeminiSpeechToText(config GeminiConfig, logger *zap.Logger) *GeminiSpeechToText {
	if config.Model == "" {
		config.Model = defaultGeminiModel
		logger.Info("Using default Gemini model", zap.String("model", config.Model))
	}
	return &GeminiSpeechToText{
		config: config,
		logger: logger,
	}
}

func (g *GeminiSpeechToText) Name() string {
	return "gemini"
}

func (g *GeminiSpeechToText) Accepts(ext string) bool {
	_, ok := geminiMIMETypes[ext]
	return ok
}

func (g *GeminiSpeechToText) Ready() error {
	if g.config.APIKey == "" {
		return fmt.Errorf("%w: Gemini API key not found. Please add GEMINI_API_KEY to your .env file", domain.ErrMissingCredential)
	}
	return nil
}

func (g *GeminiSpeechToText) getClient(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		g.client, g.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.config.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if g.clientErr != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", g.clientErr)
	}
	return g.client, nil
}

// TranscribeFile asks the model for a verbatim transcript of the file
func (g *GeminiSpeechToText) TranscribeFile(ctx context.Context, path string) (string, error) {
	if err := g.Ready(); err != nil {
		return "", err
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	mimeType, ok := geminiMIMETypes[ext]
	if !ok {
		return "", fmt.Errorf("gemini: unsupported audio format %s", ext)
	}

	audioData, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read audio file: %w", err)
	}

	client, err := g.getClient(context.Background())
	if err != nil {
		return "", err
	}

	g.logger.Debug("Transcribing with Gemini",
		zap.String("file", path),
		zap.String("model", g.config.Model))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(geminiTranscribePrompt),
			genai.NewPartFromBytes(audioData, mimeType),
		}, genai.RoleUser),
	}

	response, err := client.Models.GenerateContent(ctx, g.config.Model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", nil
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}

func (g *GeminiSpeechToText) Close() error {
	return nil
}
