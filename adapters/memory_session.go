package adapters

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/entities"
	"github.com/satriahrh/audioscribe/domain/repositories"
)

// MemorySessionRepository keeps sessions in memory for the process lifetime
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entities.Session // id -> session
	logger   *zap.Logger
}

var _ repositories.SessionRepository = (*MemorySessionRepository)(nil)

// NewMemorySessionRepository creates a new in-memory session repository
func NewMemorySessionRepository(logger *zap.Logger) *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*entities.Session),
		logger:   logger,
	}
}

// Create implements SessionRepository interface
func (m *MemorySessionRepository) Create(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	if err := session.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}

	m.sessions[session.ID] = session
	m.logger.Debug("Session created", zap.String("session_id", session.ID))
	return nil
}

// GetByID returns the session if it exists and has not expired
func (m *MemorySessionRepository) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	if id == "" {
		return nil, errors.New("session id cannot be empty")
	}

	m.mu.RLock()
	session, exists := m.sessions[id]
	m.mu.RUnlock()

	if !exists || session.IsExpired() {
		return nil, domain.ErrSessionNotFound
	}

	return session, nil
}

// Delete implements SessionRepository interface
func (m *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; !exists {
		return domain.ErrSessionNotFound
	}

	delete(m.sessions, id)
	return nil
}

// ExpireSessions drops every expired session
func (m *MemorySessionRepository) ExpireSessions(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expired := 0
	for id, session := range m.sessions {
		if session.IsExpired() {
			delete(m.sessions, id)
			expired++
		}
	}

	if expired > 0 {
		m.logger.Info("Expired sessions removed", zap.Int("count", expired))
	}
	return expired, nil
}

// Count returns the number of stored sessions, expired ones included
func (m *MemorySessionRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
