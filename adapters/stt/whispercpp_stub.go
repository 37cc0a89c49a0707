//go:build !whispercpp

package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/repositories"
)

// WhisperCppSpeechToText is a stub used when the binary is built without
// the whispercpp tag. It is never ready.
type WhisperCppSpeechToText struct {
	config WhisperCppConfig
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*WhisperCppSpeechToText)(nil)

func NewWhisperCppSpeechToText(config WhisperCppConfig, logger *zap.Logger) *WhisperCppSpeechToText {
	return &WhisperCppSpeechToText{config: config, logger: logger}
}

func (w *WhisperCppSpeechToText) Name() string { return "whispercpp" }

func (w *WhisperCppSpeechToText) Accepts(string) bool { return false }

func (w *WhisperCppSpeechToText) Ready() error {
	return fmt.Errorf("%w: whisper.cpp support not compiled in (rebuild with -tags whispercpp)", domain.ErrMissingCredential)
}

func (w *WhisperCppSpeechToText) TranscribeFile(context.Context, string) (string, error) {
	return "", w.Ready()
}

func (w *WhisperCppSpeechToText) Close() error { return nil }
