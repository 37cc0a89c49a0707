// Package codec converts uploaded audio into a WAV rendition that every
// speech-to-text provider accepts.
package codec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/repositories"
)

const (
	// TargetSampleRate is what whisper.cpp requires and what cloud
	// providers handle best for LINEAR16
	TargetSampleRate = 16000

	defaultBinary  = "ffmpeg"
	maxStderrBytes = 512
)

var _ repositories.FormatConverter = (*FFmpeg)(nil)

// FFmpeg converts audio by running the ffmpeg executable
type FFmpeg struct {
	binary   string
	logger   *zap.Logger
	lookPath func(string) (string, error)
}

// NewFFmpeg creates a converter. binary may be a bare name looked up on
// PATH or an absolute path.
func NewFFmpeg(binary string, logger *zap.Logger) *FFmpeg {
	if binary == "" {
		binary = defaultBinary
	}
	return &FFmpeg{
		binary:   binary,
		logger:   logger,
		lookPath: exec.LookPath,
	}
}

// Available reports whether ffmpeg can be found
func (f *FFmpeg) Available() error {
	_, err := f.resolve()
	return err
}

func (f *FFmpeg) resolve() (string, error) {
	path, err := f.lookPath(f.binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not installed or not on PATH", domain.ErrCodecNotFound, f.binary)
	}
	return path, nil
}

// Convert writes a 16 kHz mono WAV version of inputPath to outputPath
func (f *FFmpeg) Convert(ctx context.Context, inputPath, outputPath string) error {
	bin, err := f.resolve()
	if err != nil {
		return err
	}

	// ffmpeg -y -i input -ac 1 -ar 16000 -f wav output
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", inputPath,
		"-ac", "1", "-ar", fmt.Sprintf("%d", TargetSampleRate),
		"-f", "wav",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.logger.Debug("Converting audio",
		zap.String("input", inputPath),
		zap.String("output", outputPath))

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderrBytes {
			msg = msg[:maxStderrBytes]
		}
		if msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}

	if err := ValidateWAV(outputPath); err != nil {
		return fmt.Errorf("ffmpeg produced unusable output: %w", err)
	}
	return nil
}
