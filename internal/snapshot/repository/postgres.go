package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bookfair/backend/internal/snapshot/domain"
)

const snapshotColumns = `id, user_id, first_name, last_name, company_name, email, role, status, updated_at`

type snapshotRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	FirstName   string    `db:"first_name"`
	LastName    string    `db:"last_name"`
	CompanyName string    `db:"company_name"`
	Email       string    `db:"email"`
	Role        string    `db:"role"`
	Status      string    `db:"status"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a snapshot repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert writes s keyed by user_id. The row id is only used on first insert.
func (r *PostgresRepository) Upsert(ctx context.Context, s *domain.UserSnapshot) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO user_snapshots (`+snapshotColumns+`)
		VALUES (:id, :user_id, :first_name, :last_name, :company_name, :email, :role, :status, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			company_name = EXCLUDED.company_name,
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		WHERE user_snapshots.updated_at <= EXCLUDED.updated_at`, domainToRow(s))
	if err != nil {
		return fmt.Errorf("upsert user snapshot: %w", err)
	}
	return nil
}

// GetByID returns the snapshot for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.UserSnapshot, error) {
	return r.getOne(ctx, `SELECT `+snapshotColumns+` FROM user_snapshots WHERE id = $1`, id)
}

// GetByUserID returns the snapshot of userID, or nil if not found.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*domain.UserSnapshot, error) {
	return r.getOne(ctx, `SELECT `+snapshotColumns+` FROM user_snapshots WHERE user_id = $1`, userID)
}

// List returns every snapshot ordered by last update, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.UserSnapshot, error) {
	var rows []snapshotRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+snapshotColumns+` FROM user_snapshots ORDER BY updated_at DESC`); err != nil {
		return nil, err
	}
	out := make([]*domain.UserSnapshot, 0, len(rows))
	for i := range rows {
		out = append(out, rowToDomain(&rows[i]))
	}
	return out, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*domain.UserSnapshot, error) {
	var row snapshotRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(&row), nil
}

func domainToRow(s *domain.UserSnapshot) *snapshotRow {
	return &snapshotRow{
		ID:          s.ID,
		UserID:      s.UserID,
		FirstName:   s.FirstName,
		LastName:    s.LastName,
		CompanyName: s.CompanyName,
		Email:       s.Email,
		Role:        s.Role,
		Status:      s.Status,
		UpdatedAt:   s.UpdatedAt,
	}
}

func rowToDomain(r *snapshotRow) *domain.UserSnapshot {
	return &domain.UserSnapshot{
		ID:          r.ID,
		UserID:      r.UserID,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		CompanyName: r.CompanyName,
		Email:       r.Email,
		Role:        r.Role,
		Status:      r.Status,
		UpdatedAt:   r.UpdatedAt,
	}
}
