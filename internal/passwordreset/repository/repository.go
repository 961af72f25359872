package repository

import (
	"context"
	"time"

	"bookfair/backend/internal/passwordreset/domain"
)

// Repository defines persistence for password reset tokens.
type Repository interface {
	GetByToken(ctx context.Context, token string) (*domain.Token, error)
	// Issue marks every unused token of t.UserID used at t.CreatedAt and stores t, atomically.
	Issue(ctx context.Context, t *domain.Token) error
	// Complete consumes the token, rewrites the user's password hash and deactivates all of the
	// user's active sessions in one transaction. Returns domain.ErrTokenUnusable if the token was
	// consumed or expired concurrently.
	Complete(ctx context.Context, t *domain.Token, passwordHash string, at time.Time) (sessionsClosed int64, err error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
