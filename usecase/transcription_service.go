package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/repositories"
)

const (
	msgUnintelligible = "Could not understand audio. Try a file with clearer speech."
	msgFailed         = "Failed to transcribe audio - "
	msgInternal       = "Internal transcription failure - "
)

// TranscriptionService wraps one speech-to-text provider and turns every
// outcome into a string. Failures come back as text starting with
// entities.ErrorPrefix.
type TranscriptionService struct {
	provider repositories.SpeechToText
	logger   *zap.Logger
}

// NewTranscriptionService creates a new transcription service
func NewTranscriptionService(provider repositories.SpeechToText, logger *zap.Logger) *TranscriptionService {
	return &TranscriptionService{
		provider: provider,
		logger:   logger,
	}
}

// Ready reports whether the provider can run
func (s *TranscriptionService) Ready() error {
	return s.provider.Ready()
}

// Accepts reports whether the provider takes files with this extension as-is
func (s *TranscriptionService) Accepts(ext string) bool {
	return s.provider.Accepts(ext)
}

// ProviderName returns the name of the underlying provider
func (s *TranscriptionService) ProviderName() string {
	return s.provider.Name()
}

// Transcribe never returns an error. The result is either the transcript
// or an "Error: ..." message.
func (s *TranscriptionService) Transcribe(ctx context.Context, path string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Speech-to-text provider panicked",
				zap.String("file", path),
				zap.Any("panic", r))
			text = errorText(msgInternal + fmt.Sprint(r))
		}
	}()

	transcript, err := s.provider.TranscribeFile(ctx, path)
	if err != nil {
		s.logger.Warn("Transcription failed",
			zap.String("provider", s.provider.Name()),
			zap.String("file", path),
			zap.Error(err))
		if errors.Is(err, domain.ErrMissingCredential) {
			return errorText(PrerequisiteMessage(err))
		}
		return errorText(msgFailed + err.Error())
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return errorText(msgUnintelligible)
	}
	return transcript
}

func errorText(msg string) string {
	return "Error: " + msg
}

// PrerequisiteMessage is the user-facing text for a Ready failure. The
// sentinel prefix is stripped so only the provider's instructions remain.
func PrerequisiteMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	return strings.TrimPrefix(msg, domain.ErrMissingCredential.Error()+": ")
}
