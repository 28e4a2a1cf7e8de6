package authcore

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/codes"
	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/mail"
)

// ChangePassword replaces the password of userID after checking current.
// Every session is revoked and access tokens issued before the change stop
// validating.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "ChangePassword")
	defer func() { endSpan(span, err) }()

	ident, err := e.findActive(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := e.passwords.Verify(ctx, current, ident.PasswordHash)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		return ErrInvalidCredentials
	}

	if err := e.policy.Check(next); err != nil {
		return ErrPasswordTooWeak
	}
	if current == next {
		e.metricInc(MetricPasswordChangeReuseRejected)
		return ErrSamePassword
	}

	if err := e.replacePassword(ctx, ident, next); err != nil {
		return err
	}
	e.metricInc(MetricPasswordChangeSuccess)
	return nil
}

// ForgotPassword sends a reset code when email belongs to an active
// identity. The result never reveals whether it does.
func (e *Engine) ForgotPassword(ctx context.Context, email string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "ForgotPassword")
	defer func() { endSpan(span, err) }()

	email = identity.NormalizeEmail(email)
	ident, err := e.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil
		}
		return repoErr(err)
	}
	if ident.Status != identity.StatusActive {
		return nil
	}

	code, err := e.codes.Issue(ctx, codes.PurposePasswordReset, email)
	if err != nil {
		return err
	}
	e.sendCode(ctx, email, mail.PurposePasswordReset, code)
	e.metricInc(MetricPasswordResetRequest)
	return nil
}

// ResetPassword sets a new password using a reset code. The code is consumed
// by the attempt that matches it, even when the new password is then
// rejected as unchanged.
func (e *Engine) ResetPassword(ctx context.Context, email, code, next string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "ResetPassword")
	defer func() {
		if err != nil {
			e.metricInc(MetricPasswordResetConfirmFailure)
		}
		endSpan(span, err)
	}()

	if err := e.policy.Check(next); err != nil {
		return ErrPasswordTooWeak
	}

	email = identity.NormalizeEmail(email)
	if err := e.codes.Verify(ctx, codes.PurposePasswordReset, email, code); err != nil {
		if errors.Is(err, codes.ErrCodeAttemptsExceeded) {
			e.metricInc(MetricCodeAttemptsExceeded)
		}
		return mapCodeError(err)
	}

	ident, err := e.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrCodeExpiredOrMissing
		}
		return repoErr(err)
	}
	if ident.Status != identity.StatusActive {
		return ErrAccountNotActive
	}

	same, err := e.passwords.Verify(ctx, next, ident.PasswordHash)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil && same {
		return ErrSamePassword
	}

	if err := e.replacePassword(ctx, ident, next); err != nil {
		return err
	}
	if err := e.limiter.ResetLogin(ctx, email); err != nil {
		logf("reset login attempts failed: %v", err)
	}
	e.metricInc(MetricPasswordResetConfirmSuccess)
	return nil
}

// replacePassword persists a new hash, then revokes every session and
// stamps the password-changed marker.
func (e *Engine) replacePassword(ctx context.Context, ident identity.Identity, next string) error {
	encoded, err := e.passwords.Hash(ctx, next)
	if err != nil {
		return err
	}
	if err := e.repo.UpdateCredential(ctx, ident.ID, encoded); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrUserNotFound
		}
		return repoErr(err)
	}
	return e.revokeEverything(ctx, ident.ID)
}
