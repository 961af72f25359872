package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"bookfair/backend/internal/db"
	"bookfair/backend/internal/session/domain"
)

const sessionColumns = `id, user_id, access_token_digest, refresh_token_digest, device_info, ip_address,
	login_time, expires_at, active, logout_time, created_at, updated_at, version`

type sessionRow struct {
	ID                 string       `db:"id"`
	UserID             string       `db:"user_id"`
	AccessTokenDigest  string       `db:"access_token_digest"`
	RefreshTokenDigest string       `db:"refresh_token_digest"`
	DeviceInfo         string       `db:"device_info"`
	IPAddress          string       `db:"ip_address"`
	LoginTime          time.Time    `db:"login_time"`
	ExpiresAt          time.Time    `db:"expires_at"`
	Active             bool         `db:"active"`
	LogoutTime         sql.NullTime `db:"logout_time"`
	CreatedAt          time.Time    `db:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at"`
	Version            int64        `db:"version"`
}

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM user_sessions WHERE id = $1`, id)
}

// GetActiveByAccessDigest returns the active session holding the access token digest, or nil.
func (r *PostgresRepository) GetActiveByAccessDigest(ctx context.Context, digest string) (*domain.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM user_sessions WHERE access_token_digest = $1 AND active`, digest)
}

// GetActiveByRefreshDigest returns the active session holding the refresh token digest, or nil.
func (r *PostgresRepository) GetActiveByRefreshDigest(ctx context.Context, digest string) (*domain.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM user_sessions WHERE refresh_token_digest = $1 AND active`, digest)
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	return CreateTx(ctx, r.db, s)
}

// Deactivate flips the session inactive if it is still active at the given version.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string, version int64, at time.Time) error {
	return deactivate(ctx, r.db, id, version, at)
}

// Rotate deactivates the session id and inserts next atomically. On conflict nothing is written.
func (r *PostgresRepository) Rotate(ctx context.Context, id string, version int64, at time.Time, next *domain.Session) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := deactivate(ctx, tx, id, version, at); err != nil {
			return err
		}
		return CreateTx(ctx, tx, next)
	})
}

// DeactivateAllByUserTx flips every active session of the user inactive on ex and returns the
// number of sessions changed. Password reset and account deletion run it inside their own transaction.
func DeactivateAllByUserTx(ctx context.Context, ex sqlx.ExecerContext, userID string, at time.Time) (int64, error) {
	res, err := ex.ExecContext(ctx, `UPDATE user_sessions
		SET active = FALSE, logout_time = $2, updated_at = $2, version = version + 1
		WHERE user_id = $1 AND active`, userID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*domain.Session, error) {
	var row sessionRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(&row), nil
}

// CreateTx inserts s on ex. Registration runs it in the transaction that creates the user.
func CreateTx(ctx context.Context, ex sqlx.ExtContext, s *domain.Session) error {
	_, err := sqlx.NamedExecContext(ctx, ex, `INSERT INTO user_sessions (`+sessionColumns+`)
		VALUES (:id, :user_id, :access_token_digest, :refresh_token_digest, :device_info, :ip_address,
		:login_time, :expires_at, :active, :logout_time, :created_at, :updated_at, :version)`, domainToRow(s))
	if db.IsUniqueViolation(err) {
		return domain.ErrOptimisticConflict
	}
	return err
}

func deactivate(ctx context.Context, ex sqlx.ExecerContext, id string, version int64, at time.Time) error {
	res, err := ex.ExecContext(ctx, `UPDATE user_sessions
		SET active = FALSE, logout_time = $3, updated_at = $3, version = version + 1
		WHERE id = $1 AND version = $2 AND active`, id, version, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrOptimisticConflict
	}
	return nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}

func domainToRow(s *domain.Session) *sessionRow {
	return &sessionRow{
		ID:                 s.ID,
		UserID:             s.UserID,
		AccessTokenDigest:  s.AccessTokenDigest,
		RefreshTokenDigest: s.RefreshTokenDigest,
		DeviceInfo:         s.DeviceInfo,
		IPAddress:          s.IPAddress,
		LoginTime:          s.LoginTime,
		ExpiresAt:          s.ExpiresAt,
		Active:             s.Active,
		LogoutTime:         timeToNullTime(s.LogoutTime),
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		Version:            s.Version,
	}
}

func rowToDomain(r *sessionRow) *domain.Session {
	return &domain.Session{
		ID:                 r.ID,
		UserID:             r.UserID,
		AccessTokenDigest:  r.AccessTokenDigest,
		RefreshTokenDigest: r.RefreshTokenDigest,
		DeviceInfo:         r.DeviceInfo,
		IPAddress:          r.IPAddress,
		LoginTime:          r.LoginTime,
		ExpiresAt:          r.ExpiresAt,
		Active:             r.Active,
		LogoutTime:         nullTimeToPtr(r.LogoutTime),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		Version:            r.Version,
	}
}
