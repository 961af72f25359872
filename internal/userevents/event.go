// Package userevents publishes user lifecycle events to the event log. The auth service is the
// only publisher; downstream services consume them through package consumer.
package userevents

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	userdomain "bookfair/backend/internal/user/domain"
)

// ErrMalformedEvent is returned by Decode for payloads that cannot be applied: undecodable JSON
// or a missing user id. Retrying cannot fix them.
var ErrMalformedEvent = errors.New("malformed user lifecycle event")

// EventType is the lifecycle transition an event reports.
type EventType string

const (
	EventCreated EventType = "CREATED"
	EventUpdated EventType = "UPDATED"
	EventDeleted EventType = "DELETED"
)

// HeaderEventType carries the event type on the transport so operators can filter without decoding.
const HeaderEventType = "event-type"

// UserLifecycleEvent is the immutable wire payload. It carries a denormalized snapshot of the
// user at OccurredAt.
type UserLifecycleEvent struct {
	EventID     string    `json:"eventId"`
	EventType   EventType `json:"eventType"`
	OccurredAt  time.Time `json:"occurredAt"`
	UserID      string    `json:"userId"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	CompanyName string    `json:"companyName"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
}

// NewEvent snapshots u into a new event of type t.
func NewEvent(u *userdomain.User, t EventType, at time.Time) *UserLifecycleEvent {
	return &UserLifecycleEvent{
		EventID:     uuid.New().String(),
		EventType:   t,
		OccurredAt:  at,
		UserID:      u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		CompanyName: u.CompanyName,
		Email:       u.Email,
		Role:        string(u.Role),
		Status:      string(u.Status),
	}
}

// Key is the partitioning key: the user id, or the event id when the user id is absent.
// Keying by user keeps every event of one user on one partition, in publish order.
func (e *UserLifecycleEvent) Key() []byte {
	if e.UserID != "" {
		return []byte(e.UserID)
	}
	return []byte(e.EventID)
}

// Encode returns the JSON payload.
func (e *UserLifecycleEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a payload. Returns ErrMalformedEvent when the payload is not JSON or has no user id.
func Decode(b []byte) (*UserLifecycleEvent, error) {
	var e UserLifecycleEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}
	if e.UserID == "" {
		return nil, ErrMalformedEvent
	}
	return &e, nil
}
