// Package codes issues and verifies purpose-scoped, single-use numeric codes
// for email verification and password reset.
package codes

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/store"
)

var (
	// ErrCodeExpiredOrMissing is returned when no live code exists for the purpose and email.
	ErrCodeExpiredOrMissing = errors.New("code expired or missing")
	// ErrCodeMismatch is returned when the submitted code differs from the stored one.
	ErrCodeMismatch = errors.New("code mismatch")
	// ErrCodeAttemptsExceeded is returned on the mismatch that used up the attempt budget.
	// The stored code is deleted at that point.
	ErrCodeAttemptsExceeded = errors.New("code attempts exceeded")
)

// Purpose scopes a code. Purposes have independent lifecycles.
type Purpose string

const (
	PurposeEmailVerification Purpose = "verify"
	PurposePasswordReset     Purpose = "reset"
)

// Config controls code shape and lifetime.
type Config struct {
	TTL         time.Duration
	Digits      int
	MaxAttempts int
}

// DefaultConfig is six digits valid for fifteen minutes with five attempts.
func DefaultConfig() Config {
	return Config{TTL: 15 * time.Minute, Digits: 6, MaxAttempts: 5}
}

// Service stores codes under verify:<email> and reset:<email>.
type Service struct {
	kv       store.Store
	keys     store.Keys
	limiter  *rate.Limiter
	config   Config
	generate func(digits int) (string, error)
}

// Option customizes a Service.
type Option func(*Service)

// WithGenerator replaces the random code generator.
func WithGenerator(fn func(digits int) (string, error)) Option {
	return func(s *Service) { s.generate = fn }
}

// NewService wires a code Service. Zero config fields take DefaultConfig values.
func NewService(kv store.Store, keys store.Keys, cfg Config, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Digits == 0 {
		cfg.Digits = def.Digits
	}
	s := &Service{
		kv:     kv,
		keys:   keys,
		config: cfg,
		limiter: rate.New(kv, keys, rate.Config{
			MaxCodeAttempts:   cfg.MaxAttempts,
			CodeAttemptWindow: cfg.TTL,
		}),
		generate: internal.NewOTP,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a fresh code for purpose/email, replacing any previous
// code of the same purpose, and resets the attempt counter.
func (s *Service) Issue(ctx context.Context, purpose Purpose, email string) (string, error) {
	code, err := s.generate(s.config.Digits)
	if err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, s.key(purpose, email), code, s.config.TTL); err != nil {
		return "", err
	}
	if err := s.limiter.ResetCode(ctx, string(purpose), normalize(email)); err != nil {
		return "", err
	}
	return code, nil
}

// Verify consumes the code on a match. Concurrent matching calls race on
// the delete and only one succeeds.
func (s *Service) Verify(ctx context.Context, purpose Purpose, email, code string) error {
	key := s.key(purpose, email)
	stored, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCodeExpiredOrMissing
		}
		return err
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(code))) != 1 {
		if lerr := s.limiter.IncrementCode(ctx, string(purpose), normalize(email)); lerr != nil {
			if errors.Is(lerr, rate.ErrRateLimited) {
				if _, err := s.kv.Delete(ctx, key); err != nil {
					return err
				}
				return ErrCodeAttemptsExceeded
			}
			return lerr
		}
		return ErrCodeMismatch
	}

	n, err := s.kv.Delete(ctx, key)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCodeExpiredOrMissing
	}
	return s.limiter.ResetCode(ctx, string(purpose), normalize(email))
}

// Revoke deletes any outstanding code for purpose/email.
func (s *Service) Revoke(ctx context.Context, purpose Purpose, email string) error {
	_, err := s.kv.Delete(ctx, s.key(purpose, email))
	return err
}

func (s *Service) key(purpose Purpose, email string) string {
	return s.keys.Code(string(purpose), normalize(email))
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
