package domain

import (
	"errors"
	"time"
)

// ErrTokenUnusable is returned by the repository when a token was consumed or expired between
// lookup and completion.
var ErrTokenUnusable = errors.New("password reset token is used or expired")

// Token is a single-use, time-limited password reset token (stored in password_reset_tokens).
// It is ISSUED until it is used or its expiry passes; expiry is never stored as a state.
type Token struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the token can still be consumed at now.
func (t *Token) Usable(now time.Time) bool {
	return !t.Used && !t.ExpiresAt.Before(now)
}
