package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	userdomain "bookfair/backend/internal/user/domain"
)

// Notifier delivers password reset instructions to a user.
type Notifier interface {
	SendPasswordResetEmail(ctx context.Context, user *userdomain.User, link string, expiresAt time.Time) error
}

// LoggingNotifier writes reset instructions to the log instead of sending mail. It is the
// default Notifier until a mail transport is configured.
type LoggingNotifier struct {
	logger  *zap.Logger
	enabled bool
}

// NewLoggingNotifier returns a LoggingNotifier. When enabled is false every notification is suppressed.
func NewLoggingNotifier(logger *zap.Logger, enabled bool) *LoggingNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingNotifier{logger: logger, enabled: enabled}
}

// SendPasswordResetEmail logs the link and expiry for the user.
func (n *LoggingNotifier) SendPasswordResetEmail(_ context.Context, user *userdomain.User, link string, expiresAt time.Time) error {
	if !n.enabled {
		n.logger.Debug("password reset notifications disabled; request suppressed", zap.String("email", user.Email))
		return nil
	}
	n.logger.Info("password reset email requested",
		zap.String("email", user.Email),
		zap.String("link", link),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}
