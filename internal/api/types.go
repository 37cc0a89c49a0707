package api

import (
	"time"

	"github.com/satriahrh/audioscribe/domain/entities"
)

// SessionResponse is returned when a session is created
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResultView is one transcript as seen by the browser
type ResultView struct {
	Name    string `json:"name"`
	Text    string `json:"text"`
	IsError bool   `json:"is_error"`
}

// TranscriptionsResponse maps result keys to transcripts
type TranscriptionsResponse struct {
	Results map[string]ResultView `json:"results"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func newTranscriptionsResponse(results map[string]entities.TranscriptResult) TranscriptionsResponse {
	views := make(map[string]ResultView, len(results))
	for key, r := range results {
		views[key] = ResultView{
			Name:    r.Name,
			Text:    r.Text,
			IsError: r.IsError(),
		}
	}
	return TranscriptionsResponse{Results: views}
}
