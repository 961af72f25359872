// Package domain holds the downstream copy of a user maintained from lifecycle events.
package domain

import "time"

// UserSnapshot is a denormalized, read-only copy of an auth service user. UpdatedAt is the
// OccurredAt of the last applied event.
type UserSnapshot struct {
	ID          string
	UserID      string
	FirstName   string
	LastName    string
	CompanyName string
	Email       string
	Role        string
	Status      string
	UpdatedAt   time.Time
}
