package repositories

import "context"

// FormatConverter converts an audio container into WAV that every
// provider understands.
type FormatConverter interface {
	// Available reports whether the external codec can be used
	Available() error
	// Convert writes a 16 kHz mono WAV rendition of inputPath to outputPath
	Convert(ctx context.Context, inputPath, outputPath string) error
}
