package rate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/store"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	MaxCodeAttempts       int
	CodeAttemptWindow     time.Duration
}

// Limiter counts failed login and code attempts in the ephemeral store.
type Limiter struct {
	store  store.Store
	keys   store.Keys
	config Config
}

// New creates a rate [Limiter] backed by s.
func New(s store.Store, keys store.Keys, cfg Config) *Limiter {
	return &Limiter{
		store:  s,
		keys:   keys,
		config: cfg,
	}
}

// CheckLogin returns ErrRateLimited when email (or ip, if IP throttling is
// on) has reached the failed-login budget.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.checkCounter(ctx, l.keys.RateLimit("login", email), l.config.MaxLoginAttempts); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.checkCounter(ctx, l.keys.RateLimit("login_ip", ip), l.config.MaxLoginAttempts)
	}
	return nil
}

// IncrementLogin records a failed login attempt.
func (l *Limiter) IncrementLogin(ctx context.Context, email, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if _, err := l.store.Increment(ctx, l.keys.RateLimit("login", email), l.config.LoginCooldownDuration); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.store.Increment(ctx, l.keys.RateLimit("login_ip", ip), l.config.LoginCooldownDuration); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the per-email counter after a successful login or password change.
// The IP counter is left to expire so one good account cannot launder a sprayed IP.
func (l *Limiter) ResetLogin(ctx context.Context, email string) error {
	_, err := l.store.Delete(ctx, l.keys.RateLimit("login", email))
	return err
}

// IncrementCode records a mismatched code for purpose/email and returns
// ErrRateLimited when the attempt budget is used up.
func (l *Limiter) IncrementCode(ctx context.Context, purpose, email string) error {
	if l.config.MaxCodeAttempts <= 0 {
		return nil
	}
	count, err := l.store.Increment(ctx, l.codeKey(purpose, email), l.config.CodeAttemptWindow)
	if err != nil {
		return err
	}
	if count >= int64(l.config.MaxCodeAttempts) {
		return ErrRateLimited
	}
	return nil
}

// ResetCode clears the code attempt counter, used when a fresh code is issued or consumed.
func (l *Limiter) ResetCode(ctx context.Context, purpose, email string) error {
	_, err := l.store.Delete(ctx, l.codeKey(purpose, email))
	return err
}

// LoginAttempts returns the current failed-login count for email.
func (l *Limiter) LoginAttempts(ctx context.Context, email string) (int, error) {
	return l.read(ctx, l.keys.RateLimit("login", email))
}

func (l *Limiter) codeKey(purpose, email string) string {
	return l.keys.RateLimit("code:"+purpose, email)
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.read(ctx, key)
	if err != nil {
		return err
	}
	if count >= maxAttempts {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) read(ctx context.Context, key string) (int, error) {
	raw, err := l.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}
