package repository

import (
	"context"

	"bookfair/backend/internal/snapshot/domain"
)

// Repository defines persistence for user snapshots.
type Repository interface {
	// Upsert inserts s or overwrites the snapshot with the same UserID. A snapshot whose stored
	// UpdatedAt is newer than s.UpdatedAt is left unchanged.
	Upsert(ctx context.Context, s *domain.UserSnapshot) error
	GetByID(ctx context.Context, id string) (*domain.UserSnapshot, error)
	GetByUserID(ctx context.Context, userID string) (*domain.UserSnapshot, error)
	List(ctx context.Context) ([]*domain.UserSnapshot, error)
}
