// seed inserts development users into the auth database for local testing.
// Idempotent: a user whose email already exists is skipped. Run after ./cmd/migrate -schema auth.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"bookfair/backend/internal/config"
	"bookfair/backend/internal/db"
	"bookfair/backend/internal/security"
	userdomain "bookfair/backend/internal/user/domain"
	userrepo "bookfair/backend/internal/user/repository"
)

const devPassword = "password123"

var devUsers = []userdomain.User{
	{FirstName: "Admin", LastName: "User", CompanyName: "Book Fair Office", Email: "admin@example.com", MobileNo: "+94 11 000 0001", Role: userdomain.RoleAdmin},
	{FirstName: "Vendor", LastName: "User", CompanyName: "Lakeside Books", Email: "vendor@example.com", MobileNo: "+94 11 000 0002", Role: userdomain.RoleVendor},
	{FirstName: "Staff", LastName: "User", CompanyName: "Book Fair Office", Email: "staff@example.com", MobileNo: "+94 11 000 0003", Role: userdomain.RoleEmployee},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal(err)
	}

	conn, err := db.OpenX(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash(devPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	for _, u := range devUsers {
		existing, err := users.GetByEmail(ctx, u.Email)
		if err != nil {
			log.Fatalf("seed check %s: %v", u.Email, err)
		}
		if existing != nil {
			log.Printf("%s already exists, skipping", u.Email)
			continue
		}
		u.ID = uuid.New().String()
		u.PasswordHash = passwordHash
		u.Status = userdomain.UserStatusActive
		u.CreatedAt = now
		u.UpdatedAt = now
		if err := users.Create(ctx, &u); err != nil {
			log.Fatalf("create %s: %v", u.Email, err)
		}
		fmt.Printf("Dev login (%s): %s / %s\n", u.Role, u.Email, devPassword)
	}
	log.Println("Seed completed successfully.")
}
