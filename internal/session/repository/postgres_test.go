package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bookfair/backend/internal/db"
	"bookfair/backend/internal/db/migrate"
	"bookfair/backend/internal/session/domain"
)

// openTestDB connects to TEST_DATABASE_URL, applies the auth migrations and inserts one user.
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
		VALUES ($1, 'Test', 'User', $2, $3, 'x')`, userID, userID+"@example.com", userID[:20])
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	t.Cleanup(func() {
		conn.Exec(`DELETE FROM user_sessions WHERE user_id = $1`, userID)
		conn.Exec(`DELETE FROM users WHERE id = $1`, userID)
	})
	return conn, userID
}

func newSession(userID string) *domain.Session {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Session{
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
}

func TestPostgresRepository_ConcurrentDeactivateHasOneWinner(t *testing.T) {
	conn, userID := openTestDB(t)
	repo := NewPostgresRepository(conn)
	ctx := context.Background()

	s := newSession(userID)
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Deactivate(ctx, s.ID, s.Version, time.Now().UTC())
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrOptimisticConflict):
		default:
			t.Errorf("Deactivate: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want 1", wins)
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Active || got.LogoutTime == nil || got.Version != s.Version+1 {
		t.Errorf("session after deactivate = %+v", got)
	}
	if active, _ := repo.GetActiveByAccessDigest(ctx, s.AccessTokenDigest); active != nil {
		t.Error("inactive session must not be returned by access digest")
	}
}

func TestPostgresRepository_RotateIsAtomic(t *testing.T) {
	conn, userID := openTestDB(t)
	repo := NewPostgresRepository(conn)
	ctx := context.Background()

	old := newSession(userID)
	if err := repo.Create(ctx, old); err != nil {
		t.Fatalf("Create: %v", err)
	}

	stale := newSession(userID)
	if err := repo.Rotate(ctx, old.ID, old.Version+5, time.Now().UTC(), stale); !errors.Is(err, domain.ErrOptimisticConflict) {
		t.Fatalf("Rotate with stale version: err = %v, want conflict", err)
	}
	if got, _ := repo.GetByID(ctx, stale.ID); got != nil {
		t.Fatal("next session must not be written when rotation conflicts")
	}

	next := newSession(userID)
	if err := repo.Rotate(ctx, old.ID, old.Version, time.Now().UTC(), next); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if got, _ := repo.GetActiveByRefreshDigest(ctx, old.RefreshTokenDigest); got != nil {
		t.Error("old refresh digest still active after rotation")
	}
	if got, _ := repo.GetActiveByRefreshDigest(ctx, next.RefreshTokenDigest); got == nil {
		t.Error("new refresh digest not active after rotation")
	}

	n, err := DeactivateAllByUserTx(ctx, conn, userID, time.Now().UTC())
	if err != nil {
		t.Fatalf("DeactivateAllByUserTx: %v", err)
	}
	if n != 1 {
		t.Errorf("DeactivateAllByUserTx changed %d sessions, want 1", n)
	}
}

func TestPostgresRepository_CreateKeepsLongDeviceInfo(t *testing.T) {
	conn, userID := openTestDB(t)
	repo := NewPostgresRepository(conn)
	ctx := context.Background()

	s := newSession(userID)
	s.DeviceInfo = "Mozilla/5.0 " + strings.Repeat("(extension; build 1.0) ", 40)
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create with a %d byte user agent: %v", len(s.DeviceInfo), err)
	}
	got, err := repo.GetByID(ctx, s.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v, %v", got, err)
	}
	if got.DeviceInfo != s.DeviceInfo {
		t.Error("device info was not stored verbatim")
	}
}
