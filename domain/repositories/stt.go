package repositories

import "context"

// SpeechToText abstracts speech recognition providers
type SpeechToText interface {
	// Name returns the provider name (e.g. "openai", "whispercpp")
	Name() string
	// Accepts reports whether the provider takes files with the given
	// lowercase extension (without the dot) as-is.
	Accepts(ext string) bool
	// Ready reports a missing prerequisite (credential, model) without
	// doing any network I/O.
	Ready() error
	// TranscribeFile converts the audio file at path to text
	TranscribeFile(ctx context.Context, path string) (string, error)
	// Close releases any resources held by the provider
	Close() error
}
