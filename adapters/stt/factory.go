// Package stt holds the speech-to-text providers. Each one reports its own
// readiness so a missing credential is caught before any upload is touched.
package stt

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/domain/repositories"
)

// WhisperCppConfig holds configuration for the local whisper.cpp provider
type WhisperCppConfig struct {
	ModelPath string // path to a ggml model file
	Language  string // "en", "auto", ...
	Threads   uint   // 0 lets whisper.cpp decide
}

// Config selects a provider and carries the settings for all of them
type Config struct {
	Provider string // openai, google, gemini, whispercpp, mock
	OpenAI   OpenAIConfig
	Google   GoogleConfig
	Gemini   GeminiConfig
	Whisper  WhisperCppConfig
}

// Providers lists the names New understands
var Providers = []string{"openai", "google", "gemini", "whispercpp", "mock"}

// New builds the provider named by cfg.Provider. An empty name selects
// openai.
func New(cfg Config, logger *zap.Logger) (repositories.SpeechToText, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = "openai"
	}

	var provider repositories.SpeechToText
	switch name {
	case "openai":
		provider = NewOpenAISpeechToText(cfg.OpenAI, logger)
	case "google":
		provider = NewGoogleSpeechToText(cfg.Google, logger)
	case "gemini":
		provider = NewGeminiSpeechToText(cfg.Gemini, logger)
	case "whispercpp", "whisper":
		provider = NewWhisperCppSpeechToText(cfg.Whisper, logger)
	case "mock":
		provider = NewMockSpeechToText(logger)
	default:
		return nil, fmt.Errorf("unknown speech-to-text provider %q (want one of %s)", cfg.Provider, strings.Join(Providers, ", "))
	}

	logger.Info("Speech-to-text provider selected", zap.String("provider", provider.Name()))
	return provider, nil
}
