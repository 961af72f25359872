package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bookfair/backend/internal/db"
	"bookfair/backend/internal/db/migrate"
	"bookfair/backend/internal/passwordreset/domain"
	sessiondomain "bookfair/backend/internal/session/domain"
	sessionrepo "bookfair/backend/internal/session/repository"
)

// openTestDB connects to TEST_DATABASE_URL, applies the auth migrations and inserts one user
// with password hash "old-hash".
func openTestDB(t *testing.T) (*sqlx.DB, string) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	if err := migrate.Run(dsn, "auth", "up"); err != nil {
		t.Skipf("migrate: %v", err)
	}
	conn, err := db.OpenX(dsn)
	if err != nil {
		t.Skipf("Database connection failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	userID := uuid.New().String()
	_, err = conn.Exec(`INSERT INTO users (id, first_name, last_name, email, mobile_no, password_hash)
		VALUES ($1, 'Test', 'User', $2, $3, 'old-hash')`, userID, userID+"@example.com", userID[:20])
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	t.Cleanup(func() {
		conn.Exec(`DELETE FROM password_reset_tokens WHERE user_id = $1`, userID)
		conn.Exec(`DELETE FROM user_sessions WHERE user_id = $1`, userID)
		conn.Exec(`DELETE FROM users WHERE id = $1`, userID)
	})
	return conn, userID
}

func newToken(userID string, createdAt time.Time, ttl time.Duration) *domain.Token {
	return &domain.Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     uuid.New().String(),
		ExpiresAt: createdAt.Add(ttl),
		CreatedAt: createdAt,
	}
}

func openSessions(t *testing.T, conn *sqlx.DB, userID string, n int) {
	t.Helper()
	sessions := sessionrepo.NewPostgresRepository(conn)
	now := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < n; i++ {
		s := &sessiondomain.Session{
			ID:                 uuid.New().String(),
			UserID:             userID,
			AccessTokenDigest:  uuid.New().String() + "0000000000000000000000000000",
			RefreshTokenDigest: uuid.New().String() + "1111111111111111111111111111",
			DeviceInfo:         "unknown",
			IPAddress:          "unknown",
			LoginTime:          now,
			ExpiresAt:          now.Add(15 * time.Minute),
			Active:             true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := sessions.Create(context.Background(), s); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
}

func passwordHash(t *testing.T, conn *sqlx.DB, userID string) string {
	t.Helper()
	var hash string
	if err := conn.Get(&hash, `SELECT password_hash FROM users WHERE id = $1`, userID); err != nil {
		t.Fatalf("read password hash: %v", err)
	}
	return hash
}

func TestPostgresRepository_CompleteCascadesOnce(t *testing.T) {
	conn, userID := openTestDB(t)
	repo := NewPostgresRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	openSessions(t, conn, userID, 3)
	tok := newToken(userID, now, 30*time.Minute)
	if err := repo.Issue(ctx, tok); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	closed, err := repo.Complete(ctx, tok, "new-hash", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if closed != 3 {
		t.Errorf("sessions closed = %d, want 3", closed)
	}
	if got := passwordHash(t, conn, userID); got != "new-hash" {
		t.Errorf("password hash = %q, want new-hash", got)
	}
	var active int
	if err := conn.Get(&active, `SELECT COUNT(*) FROM user_sessions WHERE user_id = $1 AND active`, userID); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if active != 0 {
		t.Errorf("active sessions after reset = %d, want 0", active)
	}
	stored, err := repo.GetByToken(ctx, tok.Token)
	if err != nil || stored == nil || !stored.Used || stored.UsedAt == nil {
		t.Fatalf("token after Complete = %+v, %v", stored, err)
	}

	if _, err := repo.Complete(ctx, tok, "other-hash", now.Add(2*time.Minute)); !errors.Is(err, domain.ErrTokenUnusable) {
		t.Fatalf("second Complete: err = %v, want ErrTokenUnusable", err)
	}
	if got := passwordHash(t, conn, userID); got != "new-hash" {
		t.Errorf("password hash after reuse = %q, want new-hash", got)
	}
}

func TestPostgresRepository_CompleteRejectsExpiredToken(t *testing.T) {
	conn, userID := openTestDB(t)
	repo := NewPostgresRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	openSessions(t, conn, userID, 1)
	tok := newToken(userID, now, 30*time.Minute)
	if err := repo.Issue(ctx, tok); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := repo.Complete(ctx, tok, "new-hash", tok.ExpiresAt.Add(time.Second)); !errors.Is(err, domain.ErrTokenUnusable) {
		t.Fatalf("Complete after expiry: err = %v, want ErrTokenUnusable", err)
	}
	if got := passwordHash(t, conn, userID); got != "old-hash" {
		t.Errorf("password hash = %q, want old-hash", got)
	}
	var active int
	conn.Get(&active, `SELECT COUNT(*) FROM user_sessions WHERE user_id = $1 AND active`, userID)
	if active != 1 {
		t.Errorf("active sessions = %d, want 1 untouched", active)
	}

	// The expiry instant itself is still inside the window.
	if _, err := repo.Complete(ctx, tok, "new-hash", tok.ExpiresAt); err != nil {
		t.Errorf("Complete at the expiry instant: %v", err)
	}
}

func TestPostgresRepository_IssueSupersedesEarlierTokens(t *testing.T) {
	conn, userID := openTestDB(t)
	repo := NewPostgresRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := newToken(userID, now, 30*time.Minute)
	if err := repo.Issue(ctx, first); err != nil {
		t.Fatalf("Issue first: %v", err)
	}
	second := newToken(userID, now.Add(time.Minute), 30*time.Minute)
	if err := repo.Issue(ctx, second); err != nil {
		t.Fatalf("Issue second: %v", err)
	}

	got, err := repo.GetByToken(ctx, first.Token)
	if err != nil || got == nil {
		t.Fatalf("GetByToken(first): %+v, %v", got, err)
	}
	if !got.Used || got.UsedAt == nil || !got.UsedAt.Equal(second.CreatedAt) {
		t.Errorf("first token after second Issue = %+v, want used at %v", got, second.CreatedAt)
	}
	if got, _ := repo.GetByToken(ctx, second.Token); got == nil || got.Used {
		t.Errorf("second token = %+v, want unused", got)
	}
	if _, err := repo.Complete(ctx, first, "new-hash", now.Add(2*time.Minute)); !errors.Is(err, domain.ErrTokenUnusable) {
		t.Errorf("Complete with superseded token: err = %v, want ErrTokenUnusable", err)
	}
}

func TestPostgresRepository_DeleteExpired(t *testing.T) {
	conn, userID := openTestDB(t)
	repo := NewPostgresRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	old := newToken(userID, now.Add(-time.Hour), 30*time.Minute)
	if err := repo.Issue(ctx, old); err != nil {
		t.Fatalf("Issue old: %v", err)
	}
	live := newToken(userID, now, 30*time.Minute)
	if err := repo.Issue(ctx, live); err != nil {
		t.Fatalf("Issue live: %v", err)
	}

	if _, err := repo.DeleteExpired(ctx, now); err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if got, _ := repo.GetByToken(ctx, old.Token); got != nil {
		t.Error("expired token should be removed")
	}
	if got, _ := repo.GetByToken(ctx, live.Token); got == nil {
		t.Error("live token should be kept")
	}
}
