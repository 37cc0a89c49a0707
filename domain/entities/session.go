package entities

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a session stays alive without activity
const DefaultSessionTTL = time.Hour

// Session is one interactive upload session. It owns the transcript
// results of the most recent batch until they are downloaded or dismissed.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	ExpiresAt    time.Time `json:"expires_at"`

	ttl     time.Duration
	mu      sync.RWMutex
	results map[string]TranscriptResult
}

// NewSession creates a new session that expires after ttl of inactivity
func NewSession(ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()
	return &Session{
		ID:           uuid.New().String(),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(ttl),
		ttl:          ttl,
		results:      make(map[string]TranscriptResult),
	}
}

// Touch updates the last active timestamp and extends expiration
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
	s.ExpiresAt = s.LastActiveAt.Add(s.ttl)
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Now().After(s.ExpiresAt)
}

// ResetResults drops every result. Called at the start of each batch.
func (s *Session) ResetResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]TranscriptResult)
}

// ReplaceResults swaps in the results of a finished batch. When batches
// overlap on one session, the one that finishes last wins.
func (s *Session) ReplaceResults(results map[string]TranscriptResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]TranscriptResult, len(results))
	for key, result := range results {
		s.results[key] = result
	}
}

// Results returns a copy of the current results
func (s *Session) Results() map[string]TranscriptResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]TranscriptResult, len(s.results))
	for key, result := range s.results {
		out[key] = result
	}
	return out
}

// Result looks up a single result
func (s *Session) Result(key string) (TranscriptResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[key]
	return result, ok
}

// Evict removes a result, typically after it was downloaded
func (s *Session) Evict(key string) (TranscriptResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[key]
	if ok {
		delete(s.results, key)
	}
	return result, ok
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.results == nil {
		return errors.New("session results are not initialized")
	}
	return nil
}
