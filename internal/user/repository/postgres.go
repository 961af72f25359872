package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bookfair/backend/internal/db"
	sessiondomain "bookfair/backend/internal/session/domain"
	sessionrepo "bookfair/backend/internal/session/repository"
	"bookfair/backend/internal/user/domain"
)

const userColumns = `id, first_name, last_name, company_name, email, mobile_no, password_hash, role, status, created_at, updated_at`

type userRow struct {
	ID           string    `db:"id"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	CompanyName  string    `db:"company_name"`
	Email        string    `db:"email"`
	MobileNo     string    `db:"mobile_no"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail returns the user with the given email (case-insensitive), or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`, domain.NormalizeEmail(email))
}

// GetByMobile returns the user with the given mobile number, or nil if not found.
func (r *PostgresRepository) GetByMobile(ctx context.Context, mobileNo string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE mobile_no = $1`, mobileNo)
}

// Create persists the user. The user must have ID set. A uniqueness violation returns domain.ErrDuplicate.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	return mapWriteErr(insertUser(ctx, r.db, u))
}

// CreateWithSession persists the user and its first session in one transaction. Nothing is
// written when either insert fails.
func (r *PostgresRepository) CreateWithSession(ctx context.Context, u *domain.User, s *sessiondomain.Session) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := insertUser(ctx, tx, u); err != nil {
			return mapWriteErr(err)
		}
		if err := sessionrepo.CreateTx(ctx, tx, s); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

// UpdateProfile sets the profile fields of a live user and returns the stored row. Credentials,
// role and status are left as they are. Returns nil, nil when no live user has id.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, p domain.Profile, at time.Time) (*domain.User, error) {
	u, err := r.getOne(ctx, `UPDATE users SET
		first_name = $2, last_name = $3, company_name = $4, mobile_no = $5, updated_at = $6
		WHERE id = $1 AND status <> 'INACTIVE'
		RETURNING `+userColumns,
		id, p.FirstName, p.LastName, p.CompanyName, p.MobileNo, at)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return u, nil
}

// SoftDelete marks the user INACTIVE, deactivates every active session and voids outstanding
// reset tokens in one transaction. Session rows are kept. Returns the updated user, or nil, nil
// when no live user has id.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string, at time.Time) (*domain.User, error) {
	var deleted *domain.User
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var row userRow
		err := tx.GetContext(ctx, &row, `UPDATE users SET status = 'INACTIVE', updated_at = $2
			WHERE id = $1 AND status <> 'INACTIVE'
			RETURNING `+userColumns, id, at)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("deactivate user: %w", err)
		}
		if _, err := sessionrepo.DeactivateAllByUserTx(ctx, tx, id, at); err != nil {
			return fmt.Errorf("deactivate sessions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE password_reset_tokens SET used = TRUE, used_at = $2
			WHERE user_id = $1 AND NOT used`, id, at); err != nil {
			return fmt.Errorf("void reset tokens: %w", err)
		}
		deleted = rowToDomain(&row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func insertUser(ctx context.Context, ex sqlx.ExtContext, u *domain.User) error {
	_, err := sqlx.NamedExecContext(ctx, ex, `INSERT INTO users (`+userColumns+`)
		VALUES (:id, :first_name, :last_name, :company_name, :email, :mobile_no, :password_hash, :role, :status, :created_at, :updated_at)`,
		domainToRow(u))
	return err
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(&row), nil
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	return fmt.Errorf("write user: %w", err)
}

func domainToRow(u *domain.User) *userRow {
	return &userRow{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		CompanyName:  u.CompanyName,
		Email:        u.Email,
		MobileNo:     u.MobileNo,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func rowToDomain(r *userRow) *domain.User {
	return &domain.User{
		ID:           r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		CompanyName:  r.CompanyName,
		Email:        r.Email,
		MobileNo:     r.MobileNo,
		PasswordHash: r.PasswordHash,
		Role:         domain.Role(r.Role),
		Status:       domain.UserStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
