package repository

import (
	"context"
	"time"

	sessiondomain "bookfair/backend/internal/session/domain"
	"bookfair/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByMobile(ctx context.Context, mobileNo string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	CreateWithSession(ctx context.Context, u *domain.User, s *sessiondomain.Session) error
	UpdateProfile(ctx context.Context, id string, p domain.Profile, at time.Time) (*domain.User, error)
	SoftDelete(ctx context.Context, id string, at time.Time) (*domain.User, error)
}
