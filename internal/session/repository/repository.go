package repository

import (
	"context"
	"time"

	"bookfair/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Every write that flips a session inactive is
// version-checked and returns domain.ErrOptimisticConflict when the stored version differs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetActiveByAccessDigest(ctx context.Context, digest string) (*domain.Session, error)
	GetActiveByRefreshDigest(ctx context.Context, digest string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Deactivate(ctx context.Context, id string, version int64, at time.Time) error
	// Rotate deactivates the session id (version-checked) and creates next in one transaction.
	Rotate(ctx context.Context, id string, version int64, at time.Time, next *domain.Session) error
}
