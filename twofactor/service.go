// Package twofactor drives TOTP enrollment: NOT_ENABLED -> PENDING -> ENABLED.
//
// PENDING is a staged secret in the ephemeral store under 2fa:setup:<userId>
// with a short TTL. Restarting enrollment overwrites the staged secret.
// Only a confirmed code moves the secret into the durable identity record.
package twofactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/totp"
)

var (
	// ErrAlreadyEnabled is returned when starting or confirming enrollment for an enrolled user.
	ErrAlreadyEnabled = errors.New("two-factor already enabled")
	// ErrNotEnabled is returned when disabling for a user without two-factor.
	ErrNotEnabled = errors.New("two-factor not enabled")
	// ErrSetupExpired is returned when no staged secret exists.
	ErrSetupExpired = errors.New("two-factor setup expired")
	// ErrInvalidCode is returned when the TOTP code does not match.
	ErrInvalidCode = errors.New("invalid two-factor code")
)

// DefaultSetupTTL bounds how long a staged secret waits for confirmation.
const DefaultSetupTTL = 10 * time.Minute

// Setup is returned to the client to render the enrollment QR code.
type Setup struct {
	Secret string
	URI    string
}

// Service implements enrollment, confirmation and disable.
type Service struct {
	repo     identity.Repository
	kv       store.Store
	keys     store.Keys
	totp     *totp.Manager
	setupTTL time.Duration
	now      func() time.Time
}

// NewService wires a Service. setupTTL <= 0 selects DefaultSetupTTL; nil now selects time.Now.
func NewService(repo identity.Repository, kv store.Store, keys store.Keys, manager *totp.Manager, setupTTL time.Duration, now func() time.Time) *Service {
	if setupTTL <= 0 {
		setupTTL = DefaultSetupTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, kv: kv, keys: keys, totp: manager, setupTTL: setupTTL, now: now}
}

// Begin stages a fresh secret for userID and returns it with its otpauth URI.
func (s *Service) Begin(ctx context.Context, userID string) (Setup, error) {
	ident, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return Setup{}, err
	}
	if ident.TwoFactorEnabled {
		return Setup{}, ErrAlreadyEnabled
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return Setup{}, fmt.Errorf("generate totp secret: %w", err)
	}
	if err := s.kv.Set(ctx, s.keys.TwoFactorSetup(userID), secret, s.setupTTL); err != nil {
		return Setup{}, err
	}
	return Setup{Secret: secret, URI: s.totp.URI(secret, ident.Email)}, nil
}

// Confirm commits the staged secret when code matches it.
func (s *Service) Confirm(ctx context.Context, userID, code string) error {
	key := s.keys.TwoFactorSetup(userID)
	secret, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSetupExpired
		}
		return err
	}

	ident, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if ident.TwoFactorEnabled {
		return ErrAlreadyEnabled
	}
	if !s.Verify(secret, code) {
		return ErrInvalidCode
	}

	if err := s.repo.UpdateTwoFactor(ctx, userID, true, secret); err != nil {
		return err
	}
	_, err = s.kv.Delete(ctx, key)
	return err
}

// Disable clears two-factor for userID after checking code against the enrolled secret.
func (s *Service) Disable(ctx context.Context, userID, code string) error {
	ident, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !ident.TwoFactorEnabled {
		return ErrNotEnabled
	}
	if !s.Verify(ident.TwoFactorSecret, code) {
		return ErrInvalidCode
	}
	return s.repo.UpdateTwoFactor(ctx, userID, false, "")
}

// Verify checks code against secret at the current time. Malformed secrets never match.
func (s *Service) Verify(secret, code string) bool {
	ok, err := s.totp.Verify(secret, code, s.now())
	return err == nil && ok
}
