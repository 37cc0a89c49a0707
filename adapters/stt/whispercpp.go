//go:build whispercpp

package stt

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/adapters/codec"
	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/repositories"
)

// WhisperCppSpeechToText runs a local whisper.cpp model
type WhisperCppSpeechToText struct {
	config WhisperCppConfig
	logger *zap.Logger

	once     sync.Once
	model    whisper.Model
	modelErr error
	mu       sync.Mutex // whisper contexts share the model
}

var _ repositories.SpeechToText = (*WhisperCppSpeechToText)(nil)

// NewWhisperCppSpeechToText creates the provider. The model is loaded on
// first use.
func NewWhisperCppSpeechToText(config WhisperCppConfig, logger *zap.Logger) *WhisperCppSpeechToText {
	return &WhisperCppSpeechToText{
		config: config,
		logger: logger,
	}
}

func (w *WhisperCppSpeechToText) Name() string {
	return "whispercpp"
}

// Accepts is always false: whisper.cpp needs 16 kHz mono samples, so
// every upload goes through the converter first.
func (w *WhisperCppSpeechToText) Accepts(ext string) bool {
	return false
}

func (w *WhisperCppSpeechToText) Ready() error {
	if w.config.ModelPath == "" {
		return fmt.Errorf("%w: whisper model not configured. Please set WHISPER_MODEL_PATH", domain.ErrMissingCredential)
	}
	if _, err := os.Stat(w.config.ModelPath); err != nil {
		return fmt.Errorf("%w: whisper model %s not found", domain.ErrMissingCredential, w.config.ModelPath)
	}
	return nil
}

func (w *WhisperCppSpeechToText) loadModel() (whisper.Model, error) {
	w.once.Do(func() {
		w.logger.Info("Loading whisper.cpp model", zap.String("path", w.config.ModelPath))
		w.model, w.modelErr = whisper.New(w.config.ModelPath)
		if w.modelErr == nil {
			w.logger.Info("whisper.cpp model loaded", zap.Bool("multilingual", w.model.IsMultilingual()))
		}
	})
	if w.modelErr != nil {
		return nil, fmt.Errorf("load whisper model: %w", w.modelErr)
	}
	return w.model, nil
}

// TranscribeFile decodes a 16 kHz mono WAV and runs it through the model
func (w *WhisperCppSpeechToText) TranscribeFile(ctx context.Context, path string) (string, error) {
	if err := w.Ready(); err != nil {
		return "", err
	}

	samples, rate, err := codec.DecodeMonoFloat32(path)
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}
	if rate != codec.TargetSampleRate {
		return "", fmt.Errorf("whisper needs %d Hz audio, got %d Hz", codec.TargetSampleRate, rate)
	}

	model, err := w.loadModel()
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create whisper context: %w", err)
	}

	if w.config.Language != "" {
		if err := wctx.SetLanguage(w.config.Language); err != nil {
			w.logger.Warn("Failed to set whisper language",
				zap.String("language", w.config.Language),
				zap.Error(err))
		}
	}
	if w.config.Threads > 0 {
		wctx.SetThreads(w.config.Threads)
	}

	w.logger.Debug("Transcribing with whisper.cpp",
		zap.String("file", path),
		zap.Float64("duration_sec", float64(len(samples))/float64(rate)))

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	var text strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("get segment: %w", err)
		}
		text.WriteString(segment.Text)
	}

	return strings.TrimSpace(text.String()), nil
}

func (w *WhisperCppSpeechToText) Close() error {
	if w.model != nil {
		return w.model.Close()
	}
	return nil
}
