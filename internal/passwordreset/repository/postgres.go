package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bookfair/backend/internal/db"
	"bookfair/backend/internal/passwordreset/domain"
	sessionrepo "bookfair/backend/internal/session/repository"
)

type tokenRow struct {
	ID        string       `db:"id"`
	UserID    string       `db:"user_id"`
	Token     string       `db:"token"`
	ExpiresAt time.Time    `db:"expires_at"`
	Used      bool         `db:"used"`
	UsedAt    sql.NullTime `db:"used_at"`
	CreatedAt time.Time    `db:"created_at"`
}

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a password reset token repository that uses the given db.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByToken returns the token row for the opaque token value, or nil if not found.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*domain.Token, error) {
	var row tokenRow
	err := r.db.GetContext(ctx, &row, `SELECT id, user_id, token, expires_at, used, used_at, created_at
		FROM password_reset_tokens WHERE token = $1`, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t := &domain.Token{
		ID: row.ID, UserID: row.UserID, Token: row.Token, ExpiresAt: row.ExpiresAt,
		Used: row.Used, CreatedAt: row.CreatedAt,
	}
	if row.UsedAt.Valid {
		t.UsedAt = &row.UsedAt.Time
	}
	return t, nil
}

// Issue supersedes the user's outstanding tokens and persists t. The token must have ID set.
func (r *PostgresRepository) Issue(ctx context.Context, t *domain.Token) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE password_reset_tokens SET used = TRUE, used_at = $2
			WHERE user_id = $1 AND NOT used`, t.UserID, t.CreatedAt); err != nil {
			return fmt.Errorf("supersede tokens: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO password_reset_tokens (id, user_id, token, expires_at, used, created_at)
			VALUES ($1, $2, $3, $4, FALSE, $5)`, t.ID, t.UserID, t.Token, t.ExpiresAt, t.CreatedAt); err != nil {
			return fmt.Errorf("insert token: %w", err)
		}
		return nil
	})
}

// Complete consumes t and applies the password change with its session cascade.
func (r *PostgresRepository) Complete(ctx context.Context, t *domain.Token, passwordHash string, at time.Time) (int64, error) {
	var closed int64
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE password_reset_tokens SET used = TRUE, used_at = $2
			WHERE id = $1 AND NOT used AND expires_at >= $2`, t.ID, at)
		if err != nil {
			return fmt.Errorf("consume token: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return domain.ErrTokenUnusable
		}
		res, err = tx.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
			t.UserID, passwordHash, at)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return domain.ErrTokenUnusable
		}
		closed, err = sessionrepo.DeactivateAllByUserTx(ctx, tx, t.UserID, at)
		if err != nil {
			return fmt.Errorf("deactivate sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return closed, nil
}

// DeleteExpired removes every token that expired before the cutoff.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
