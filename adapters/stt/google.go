package stt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/repositories"
)

// GoogleConfig holds configuration for Google Cloud Speech-to-Text
type GoogleConfig struct {
	CredentialsFile string // service account JSON
	LanguageCode    string // BCP-47, default "en-US"
}

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	config GoogleConfig
	logger *zap.Logger

	mu     sync.Mutex
	client *speech.Client
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates the provider. The gRPC client is created
// on first use.
func NewGoogleSpeechToText(config GoogleConfig, logger *zap.Logger) *GoogleSpeechToText {
	if config.LanguageCode == "" {
		config.LanguageCode = "en-US"
	}
	return &GoogleSpeechToText{
		config: config,
		logger: logger,
	}
}

func (g *GoogleSpeechToText) Name() string {
	return "google"
}

// Accepts reports formats that carry their own header, so the sample rate
// does not have to be supplied
func (g *GoogleSpeechToText) Accepts(ext string) bool {
	_, err := getAudioEncoding(ext)
	return err == nil
}

func (g *GoogleSpeechToText) Ready() error {
	if g.config.CredentialsFile == "" {
		return fmt.Errorf("%w: Google credentials not found. Please set GOOGLE_APPLICATION_CREDENTIALS", domain.ErrMissingCredential)
	}
	if _, err := os.Stat(g.config.CredentialsFile); err != nil {
		return fmt.Errorf("%w: Google credentials file %s is not readable", domain.ErrMissingCredential, g.config.CredentialsFile)
	}
	return nil
}

func (g *GoogleSpeechToText) getClient() (*speech.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	client, err := speech.NewClient(context.Background(), option.WithCredentialsFile(g.config.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	g.client = client
	return client, nil
}

// TranscribeFile converts audio to text using a synchronous Recognize call
func (g *GoogleSpeechToText) TranscribeFile(ctx context.Context, path string) (string, error) {
	if err := g.Ready(); err != nil {
		return "", err
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	encoding, err := getAudioEncoding(ext)
	if err != nil {
		return "", err
	}

	audioData, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read audio file: %w", err)
	}

	client, err := g.getClient()
	if err != nil {
		return "", err
	}

	g.logger.Debug("Transcribing with Google Speech",
		zap.String("file", path),
		zap.String("language", g.config.LanguageCode))

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encoding,
			LanguageCode:               g.config.LanguageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google recognize: %w", err)
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			// Take the best alternative
			parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
		}
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

// Close releases the gRPC client. A later transcription creates a new one.
func (g *GoogleSpeechToText) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}

// getAudioEncoding maps a file extension to the Speech API encoding enum
func getAudioEncoding(ext string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch ext {
	case "wav":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "flac":
		return speechpb.RecognitionConfig_FLAC, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", ext)
	}
}
