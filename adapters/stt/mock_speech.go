package stt

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/domain/repositories"
)

// MockSpeechToText returns canned transcripts based on file size. It needs
// no credentials and is meant for local runs and tests.
type MockSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

func (s *MockSpeechToText) Name() string {
	return "mock"
}

func (s *MockSpeechToText) Accepts(ext string) bool {
	return ext == "wav"
}

func (s *MockSpeechToText) Ready() error {
	return nil
}

// TranscribeFile implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeFile(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat audio file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	size := info.Size()
	s.logger.Info("Processing mock speech-to-text",
		zap.String("file", path),
		zap.Int64("audioSize", size))

	// Mock transcription based on audio size
	switch {
	case size > 10000:
		return "Hello, this is a longer mock transcript of the uploaded recording.", nil
	case size > 5000:
		return "Thank you for listening.", nil
	case size > 1000:
		return "Hello there!", nil
	case size > 0:
		return "Hi", nil
	default:
		return "", nil
	}
}

func (s *MockSpeechToText) Close() error {
	return nil
}
