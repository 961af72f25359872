// Package service applies user lifecycle events to the snapshot store and serves reads.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookfair/backend/internal/snapshot/domain"
	"bookfair/backend/internal/snapshot/repository"
	"bookfair/backend/internal/userevents"
)

// Service is the EventConsumer's Applier and the backing of the read-only snapshot API.
type Service struct {
	repo repository.Repository
	now  func() time.Time
}

// NewService returns a Service backed by repo.
func NewService(repo repository.Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Apply upserts the snapshot carried by e. Every event type, DELETED included, overwrites the
// snapshot with the state it carries. Applying the same event twice leaves the same row.
func (s *Service) Apply(ctx context.Context, e *userevents.UserLifecycleEvent) error {
	at := e.OccurredAt
	if at.IsZero() {
		at = s.now()
	}
	return s.repo.Upsert(ctx, &domain.UserSnapshot{
		ID:          uuid.New().String(),
		UserID:      e.UserID,
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		CompanyName: e.CompanyName,
		Email:       e.Email,
		Role:        e.Role,
		Status:      e.Status,
		UpdatedAt:   at,
	})
}

// Get returns the snapshot with the given row id, or nil.
func (s *Service) Get(ctx context.Context, id string) (*domain.UserSnapshot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return s.repo.GetByID(ctx, id)
}

// GetByUserID returns the snapshot of userID, or nil.
func (s *Service) GetByUserID(ctx context.Context, userID string) (*domain.UserSnapshot, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, nil
	}
	return s.repo.GetByUserID(ctx, userID)
}

// List returns every snapshot.
func (s *Service) List(ctx context.Context) ([]*domain.UserSnapshot, error) {
	return s.repo.List(ctx)
}
