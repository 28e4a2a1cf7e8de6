package authcore

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/identity"
)

// GenerateTwoFactor starts enrollment for userID and returns the staged
// secret with its otpauth:// URI. Calling it again replaces the staged secret.
func (e *Engine) GenerateTwoFactor(ctx context.Context, userID string) (setup TwoFactorSetup, err error) {
	if e == nil {
		return TwoFactorSetup{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "GenerateTwoFactor")
	defer func() { endSpan(span, err) }()

	if _, err := e.findActive(ctx, userID); err != nil {
		return TwoFactorSetup{}, err
	}
	s, err := e.twoFactor.Begin(ctx, userID)
	if err != nil {
		return TwoFactorSetup{}, twoFactorErr(err)
	}
	return TwoFactorSetup{Secret: s.Secret, URI: s.URI}, nil
}

// EnableTwoFactor confirms the staged secret with a current TOTP code.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID, code string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "EnableTwoFactor")
	defer func() { endSpan(span, err) }()

	if err := e.twoFactor.Confirm(ctx, userID, code); err != nil {
		return twoFactorErr(err)
	}
	e.metricInc(MetricTwoFactorEnabled)
	return nil
}

// DisableTwoFactor turns two-factor off after checking a current TOTP code.
// The stored secret is cleared.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, code string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "DisableTwoFactor")
	defer func() { endSpan(span, err) }()

	if err := e.twoFactor.Disable(ctx, userID, code); err != nil {
		return twoFactorErr(err)
	}
	e.metricInc(MetricTwoFactorDisabled)
	return nil
}

func twoFactorErr(err error) error {
	switch {
	case errors.Is(err, ErrAlreadyEnabled),
		errors.Is(err, ErrNotEnabled),
		errors.Is(err, ErrSetupExpired),
		errors.Is(err, ErrInvalidTwoFactorCode),
		errors.Is(err, ErrStoreUnavailable):
		return err
	case errors.Is(err, identity.ErrNotFound):
		return ErrUserNotFound
	default:
		return repoErr(err)
	}
}
