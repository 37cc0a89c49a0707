package repositories

import (
	"context"
	"time"

	"github.com/satriahrh/audioscribe/domain/entities"
)

// Allocation is a freshly created, empty temp file
type Allocation struct {
	Token string
	Path  string
}

// TempStore manages the scratch directory used for uploaded audio
type TempStore interface {
	Allocate(originalName string) (Allocation, error)
	Release(path string)
	Sweep(maxAge time.Duration) int
}

// SessionRepository stores interactive sessions for the process lifetime
type SessionRepository interface {
	Create(ctx context.Context, session *entities.Session) error
	GetByID(ctx context.Context, id string) (*entities.Session, error)
	Delete(ctx context.Context, id string) error
	// ExpireSessions removes idle sessions and returns how many were dropped
	ExpireSessions(ctx context.Context) (int, error)
}
