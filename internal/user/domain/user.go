package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrDuplicate is returned by the repository when an insert or update violates the email or mobile uniqueness constraint.
var ErrDuplicate = errors.New("user email or mobile number already exists")

// User is the identity record owned by the auth service.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	CompanyName  string
	Email        string // stored lower-case
	MobileNo     string
	PasswordHash string
	Role         Role
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleVendor   Role = "VENDOR"
	RoleEmployee Role = "EMPLOYEE"
)

// ParseRole returns the Role for s, or RoleVendor when s is empty.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return RoleVendor, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleVendor:
		return RoleVendor, nil
	case RoleEmployee:
		return RoleEmployee, nil
	}
	return "", errors.New("unknown role")
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusInactive  UserStatus = "INACTIVE" // deleted account; the row and its sessions are kept
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// Profile holds the fields a user may change on their own account.
type Profile struct {
	FirstName   string
	LastName    string
	CompanyName string
	MobileNo    string
}

// Deleted reports whether the account was removed by its owner.
func (u *User) Deleted() bool {
	return u.Status == UserStatusInactive
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.MobileNo == "" {
		return errors.New("mobile number is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = RoleVendor
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
