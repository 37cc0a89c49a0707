package stt_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/audioscribe/adapters/stt"
	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/repositories"
)

var (
	_ repositories.SpeechToText = &stt.OpenAISpeechToText{}
	_ repositories.SpeechToText = &stt.GoogleSpeechToText{}
	_ repositories.SpeechToText = &stt.GeminiSpeechToText{}
	_ repositories.SpeechToText = &stt.WhisperCppSpeechToText{}
	_ repositories.SpeechToText = &stt.MockSpeechToText{}
)

func TestNew(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{"", "openai", false},
		{"openai", "openai", false},
		{"Google", "google", false},
		{"gemini", "gemini", false},
		{"whispercpp", "whispercpp", false},
		{"whisper", "whispercpp", false},
		{"mock", "mock", false},
		{"azure", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := stt.New(stt.Config{Provider: tt.provider}, logger)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for provider %q", tt.provider)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("expected provider %s, got %s", tt.want, p.Name())
			}
		})
	}
}

func TestReady_MissingCredentials(t *testing.T) {
	logger := zap.NewNop()

	providers := []repositories.SpeechToText{
		stt.NewOpenAISpeechToText(stt.OpenAIConfig{}, logger),
		stt.NewGoogleSpeechToText(stt.GoogleConfig{}, logger),
		stt.NewGoogleSpeechToText(stt.GoogleConfig{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}, logger),
		stt.NewGeminiSpeechToText(stt.GeminiConfig{}, logger),
		stt.NewWhisperCppSpeechToText(stt.WhisperCppConfig{}, logger),
	}

	for _, p := range providers {
		t.Run(p.Name(), func(t *testing.T) {
			err := p.Ready()
			if !errors.Is(err, domain.ErrMissingCredential) {
				t.Fatalf("expected ErrMissingCredential, got %v", err)
			}

			// Transcription must refuse without touching the network
			_, err = p.TranscribeFile(context.Background(), "/nonexistent.wav")
			if !errors.Is(err, domain.ErrMissingCredential) {
				t.Errorf("expected ErrMissingCredential from TranscribeFile, got %v", err)
			}
		})
	}
}

func TestReady_WithCredentials(t *testing.T) {
	logger := zap.NewNop()

	creds := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(creds, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}

	providers := []repositories.SpeechToText{
		stt.NewOpenAISpeechToText(stt.OpenAIConfig{APIKey: "sk-test"}, logger),
		stt.NewGoogleSpeechToText(stt.GoogleConfig{CredentialsFile: creds}, logger),
		stt.NewGeminiSpeechToText(stt.GeminiConfig{APIKey: "test"}, logger),
		stt.NewMockSpeechToText(logger),
	}

	for _, p := range providers {
		if err := p.Ready(); err != nil {
			t.Errorf("%s: expected ready, got %v", p.Name(), err)
		}
	}
}

func TestGoogleSpeechToText_CloseDuringTranscription(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(creds, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	audio := filepath.Join(dir, "clip.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0600); err != nil {
		t.Fatal(err)
	}

	provider := stt.NewGoogleSpeechToText(stt.GoogleConfig{CredentialsFile: creds}, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[i] = provider.TranscribeFile(context.Background(), audio)
		}()
		go func() {
			defer wg.Done()
			provider.Close()
		}()
	}
	wg.Wait()

	// Unusable credentials fail at client creation, before any request
	for i, err := range errs {
		if err == nil {
			t.Errorf("transcription %d: expected a client error", i)
		}
	}
	if err := provider.Close(); err != nil {
		t.Errorf("Close after failed client creation: %v", err)
	}
}

func TestAccepts(t *testing.T) {
	logger := zap.NewNop()

	openai := stt.NewOpenAISpeechToText(stt.OpenAIConfig{}, logger)
	google := stt.NewGoogleSpeechToText(stt.GoogleConfig{}, logger)
	gemini := stt.NewGeminiSpeechToText(stt.GeminiConfig{}, logger)
	whisper := stt.NewWhisperCppSpeechToText(stt.WhisperCppConfig{}, logger)

	tests := []struct {
		ext     string
		openai  bool
		google  bool
		gemini  bool
		whisper bool
	}{
		{"wav", true, true, true, false},
		{"mp3", true, false, true, false},
		{"flac", true, true, true, false},
		{"m4a", true, false, false, false},
		{"aiff", false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := openai.Accepts(tt.ext); got != tt.openai {
				t.Errorf("openai.Accepts(%s) = %v", tt.ext, got)
			}
			if got := google.Accepts(tt.ext); got != tt.google {
				t.Errorf("google.Accepts(%s) = %v", tt.ext, got)
			}
			if got := gemini.Accepts(tt.ext); got != tt.gemini {
				t.Errorf("gemini.Accepts(%s) = %v", tt.ext, got)
			}
			if got := whisper.Accepts(tt.ext); got != tt.whisper {
				t.Errorf("whisper.Accepts(%s) = %v", tt.ext, got)
			}
		})
	}
}

func TestMockSpeechToText(t *testing.T) {
	mock := stt.NewMockSpeechToText(zaptest.NewLogger(t))
	dir := t.TempDir()

	tests := []struct {
		name string
		size int
		want string
	}{
		{"empty", 0, ""},
		{"tiny", 10, "Hi"},
		{"small", 2000, "Hello there!"},
		{"medium", 6000, "Thank you for listening."},
		{"large", 20000, "Hello, this is a longer mock transcript of the uploaded recording."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".wav")
			if err := os.WriteFile(path, make([]byte, tt.size), 0600); err != nil {
				t.Fatal(err)
			}
			got, err := mock.TranscribeFile(context.Background(), path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if _, err := mock.TranscribeFile(context.Background(), filepath.Join(dir, "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}
}
