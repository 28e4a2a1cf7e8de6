// Package identity defines the durable user record and the repository
// contract the authentication core reads and writes.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no identity matches the lookup.
	ErrNotFound = errors.New("identity not found")
	// ErrDuplicateEmail is returned by Create when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrTwoFactorSecretRequired is returned when enabling 2FA without a secret.
	ErrTwoFactorSecretRequired = errors.New("two-factor secret required when enabling")
	// ErrInvalidStatus is returned for status values outside the known set.
	ErrInvalidStatus = errors.New("invalid account status")
)

// Status is the account lifecycle state. Only ACTIVE accounts may authenticate.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusDeleted   Status = "DELETED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusDeleted:
		return true
	}
	return false
}

// DefaultRole is assigned to identities created without an explicit role.
const DefaultRole = "user"

// Identity is the durable user record.
type Identity struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string
	Role             string
	Status           Status
	EmailVerified    bool
	TwoFactorEnabled bool
	TwoFactorSecret  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Repository persists identities. Implementations must keep
// TwoFactorSecret empty whenever TwoFactorEnabled is false.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (Identity, error)
	FindByID(ctx context.Context, id string) (Identity, error)
	Create(ctx context.Context, ident Identity) (Identity, error)
	UpdateCredential(ctx context.Context, id, passwordHash string) error
	UpdateTwoFactor(ctx context.Context, id string, enabled bool, secret string) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	MarkEmailVerified(ctx context.Context, id string) error
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckTwoFactor validates an UpdateTwoFactor request and returns the
// secret to persist.
func CheckTwoFactor(enabled bool, secret string) (string, error) {
	if !enabled {
		return "", nil
	}
	if strings.TrimSpace(secret) == "" {
		return "", ErrTwoFactorSecretRequired
	}
	return secret, nil
}
