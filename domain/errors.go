package domain

import "errors"

var (
	// ErrMissingCredential is returned when the configured transcription
	// provider cannot run because a credential or model is not available.
	ErrMissingCredential = errors.New("missing prerequisite")

	// ErrCodecNotFound is returned when the external audio codec cannot be
	// located on the host.
	ErrCodecNotFound = errors.New("audio codec not found")

	// ErrUnsupportedMedia is returned for uploads that are not audio.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	ErrSessionNotFound = errors.New("session not found")
	ErrResultNotFound  = errors.New("transcript not found")
)
