package domain

import (
	"errors"
	"time"
)

// ErrOptimisticConflict is returned when a version-checked session write lost the race
// against a concurrent writer.
var ErrOptimisticConflict = errors.New("session was modified concurrently")

// Session is one issued access/refresh token pair. It moves ACTIVE → INACTIVE exactly once.
// Tokens are held as SHA-256 digests; the raw bearer values are never stored.
type Session struct {
	ID                 string
	UserID             string
	AccessTokenDigest  string
	RefreshTokenDigest string
	DeviceInfo         string
	IPAddress          string
	LoginTime          time.Time
	ExpiresAt          time.Time
	Active             bool
	LogoutTime         *time.Time // nil while active
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int64
}

// Deactivate marks the session inactive at at. Returns false if it was already inactive.
func (s *Session) Deactivate(at time.Time) bool {
	if !s.Active {
		return false
	}
	s.Active = false
	s.LogoutTime = &at
	s.UpdatedAt = at
	s.Version++
	return true
}
