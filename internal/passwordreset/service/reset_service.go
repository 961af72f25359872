// Package service implements the password reset flow: single-use, time-limited tokens whose
// successful use rewrites the password and logs the user out of every device.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bookfair/backend/internal/passwordreset/domain"
	"bookfair/backend/internal/security"
	userdomain "bookfair/backend/internal/user/domain"
)

// ErrInvalidToken is returned by ResetPassword when the token is unknown, used, expired, or the
// feature is disabled.
var ErrInvalidToken = errors.New("invalid or expired password reset token")

// UserRepo is the minimal user repository needed by the reset service.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// TokenRepo is the minimal token repository needed by the reset service.
type TokenRepo interface {
	GetByToken(ctx context.Context, token string) (*domain.Token, error)
	Issue(ctx context.Context, t *domain.Token) error
	Complete(ctx context.Context, t *domain.Token, passwordHash string, at time.Time) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PasswordHasher hashes a new password for storage.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Options configures the reset service.
type Options struct {
	Enabled bool
	// TTL is the validity window of an issued token.
	TTL time.Duration
	// BaseURL is the frontend page that receives the token as a query parameter.
	BaseURL string
}

// ResetService issues and consumes password reset tokens.
type ResetService struct {
	users    UserRepo
	tokens   TokenRepo
	hasher   PasswordHasher
	notifier Notifier
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
	newToken func() (string, error)
}

// NewResetService returns a ResetService with the given dependencies.
func NewResetService(users UserRepo, tokens TokenRepo, hasher PasswordHasher, notifier Notifier, opts Options, logger *zap.Logger) *ResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResetService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: security.NewOpaqueToken,
	}
}

// RequestReset issues a reset token for the user with email and hands the link to the Notifier.
// Unknown emails are indistinguishable from known ones to the caller. A disabled feature is a no-op.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	if !s.opts.Enabled {
		s.logger.Warn("password reset feature disabled; ignoring forgot-password request")
		return nil
	}
	now := s.now()
	if n, err := s.tokens.DeleteExpired(ctx, now); err != nil {
		s.logger.Warn("expired reset token sweep failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Debug("expired reset tokens removed", zap.Int64("count", n))
	}

	user, err := s.users.GetByEmail(ctx, userdomain.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || user.Deleted() {
		s.logger.Debug("password reset requested for unknown email")
		return nil
	}

	value, err := s.newToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	t := &domain.Token{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     value,
		ExpiresAt: now.Add(s.opts.TTL),
		CreatedAt: now,
	}
	if err := s.tokens.Issue(ctx, t); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := BuildResetLink(s.opts.BaseURL, t.Token)
	if err := s.notifier.SendPasswordResetEmail(ctx, user, link, t.ExpiresAt); err != nil {
		s.logger.Error("password reset notification failed", zap.String("email", user.Email), zap.Error(err))
		return nil
	}
	s.logger.Info("password reset instructions generated", zap.String("user_id", user.ID))
	return nil
}

// ResetPassword consumes token and sets newPassword. All of the user's active sessions are
// deactivated in the same transaction.
func (s *ResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if !s.opts.Enabled {
		return ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	now := s.now()
	t, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("lookup reset token: %w", err)
	}
	if t == nil || !t.Usable(now) {
		return ErrInvalidToken
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	closed, err := s.tokens.Complete(ctx, t, hash, now)
	if err != nil {
		if errors.Is(err, domain.ErrTokenUnusable) {
			return ErrInvalidToken
		}
		return fmt.Errorf("complete reset: %w", err)
	}
	s.logger.Info("password reset completed", zap.String("user_id", t.UserID), zap.Int64("sessions_closed", closed))
	return nil
}

// BuildResetLink appends the URL-encoded token to baseURL as the "token" query parameter.
func BuildResetLink(baseURL, token string) string {
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return baseURL + sep + "token=" + url.QueryEscape(token)
}
