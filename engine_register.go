package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/authcore/codes"
	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/mail"
)

const registerMessage = "Registration successful. Check your email for the verification code."

// Register creates an ACTIVE, unverified identity and sends it an email
// verification code. No tokens are issued.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (res RegisterResult, err error) {
	if e == nil {
		return RegisterResult{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	email := identity.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return RegisterResult{}, ErrInvalidEmail
	}
	if err := e.policy.Check(req.Password); err != nil {
		return RegisterResult{}, ErrPasswordTooWeak
	}

	if _, err := e.repo.FindByEmail(ctx, email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		return RegisterResult{}, ErrEmailTaken
	} else if !errors.Is(err, identity.ErrNotFound) {
		return RegisterResult{}, repoErr(err)
	}

	encoded, err := e.passwords.Hash(ctx, req.Password)
	if err != nil {
		return RegisterResult{}, err
	}

	created, err := e.repo.Create(ctx, identity.Identity{
		Email:         email,
		Name:          req.Name,
		PasswordHash:  encoded,
		Role:          identity.DefaultRole,
		Status:        identity.StatusActive,
		EmailVerified: false,
	})
	if err != nil {
		if errors.Is(err, identity.ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
			return RegisterResult{}, ErrEmailTaken
		}
		return RegisterResult{}, repoErr(err)
	}

	code, err := e.codes.Issue(ctx, codes.PurposeEmailVerification, email)
	if err != nil {
		return RegisterResult{}, err
	}
	e.sendCode(ctx, email, mail.PurposeEmailVerification, code)
	e.metricInc(MetricRegisterSuccess)
	e.metricInc(MetricEmailVerificationRequest)

	return RegisterResult{Message: registerMessage, Email: email, UserID: created.ID}, nil
}

// VerifyEmail consumes the verification code for email and marks the
// identity verified. Verified users hold no code, so repeating the call
// fails with ErrCodeExpiredOrMissing.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "VerifyEmail")
	defer func() {
		if err != nil {
			e.metricInc(MetricEmailVerificationFailure)
		}
		endSpan(span, err)
	}()

	email = identity.NormalizeEmail(email)
	if err := e.codes.Verify(ctx, codes.PurposeEmailVerification, email, code); err != nil {
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
	if err := e.repo.MarkEmailVerified(ctx, ident.ID); err != nil {
		return repoErr(err)
	}
	e.metricInc(MetricEmailVerificationSuccess)
	return nil
}

// ResendVerification issues a fresh verification code when email belongs
// to an unverified, active identity. It reports success either way.
func (e *Engine) ResendVerification(ctx context.Context, email string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "ResendVerification")
	defer func() { endSpan(span, err) }()

	email = identity.NormalizeEmail(email)
	ident, err := e.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil
		}
		return repoErr(err)
	}
	if ident.EmailVerified || ident.Status != identity.StatusActive {
		return nil
	}

	code, err := e.codes.Issue(ctx, codes.PurposeEmailVerification, email)
	if err != nil {
		return err
	}
	e.sendCode(ctx, email, mail.PurposeEmailVerification, code)
	e.metricInc(MetricEmailVerificationRequest)
	return nil
}
