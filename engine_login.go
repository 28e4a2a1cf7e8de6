package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/rate"
	"go.opentelemetry.io/otel/attribute"
)

// loginTokenIDPrefix marks the jti of temporary two-factor tokens.
// ValidateAccess never accepts such tokens.
const loginTokenIDPrefix = "tfa_"

// Login verifies credentials and either authenticates the user or, for
// two-factor accounts without a code, stages a temporary token.
//
// Failures: ErrLoginRateLimited, ErrInvalidCredentials, ErrAccountNotActive,
// ErrEmailNotVerified, ErrInvalidTwoFactorCode.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (out LoginOutcome, err error) {
	if e == nil {
		return LoginOutcome{}, ErrEngineNotReady
	}
	start := e.now()
	ctx, span := e.startSpan(ctx, "Login")
	defer func() {
		if err == nil {
			span.SetAttributes(attribute.String("authcore.login.outcome", out.Kind.String()))
		}
		endSpan(span, err)
		e.metrics.Observe(MetricLoginLatency, e.now().Sub(start))
	}()

	email := identity.NormalizeEmail(req.Email)
	ip := ClientIPFromContext(ctx)

	if err := e.limiter.CheckLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			return LoginOutcome{}, ErrLoginRateLimited
		}
		return LoginOutcome{}, err
	}

	ident, err := e.credentials.Verify(ctx, email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrAccountNotActive) {
			e.metricInc(MetricLoginFailure)
			if lerr := e.limiter.IncrementLogin(ctx, email, ip); lerr != nil {
				return LoginOutcome{}, lerr
			}
			return LoginOutcome{}, err
		}
		return LoginOutcome{}, repoErr(err)
	}

	if !ident.EmailVerified {
		e.metricInc(MetricLoginEmailNotVerified)
		return LoginOutcome{}, ErrEmailNotVerified
	}

	e.upgradePasswordHash(ctx, ident, req.Password)

	if !ident.TwoFactorEnabled {
		return e.authenticated(ctx, ident, email)
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		token, err := e.stageLoginToken(ctx, ident)
		if err != nil {
			return LoginOutcome{}, err
		}
		e.metricInc(MetricTwoFactorRequired)
		return LoginOutcome{
			Kind:           OutcomeTwoFactorRequired,
			TemporaryToken: token,
			UserID:         ident.ID,
		}, nil
	}

	if !e.twoFactor.Verify(ident.TwoFactorSecret, code) {
		e.metricInc(MetricTwoFactorLoginFailure)
		if lerr := e.limiter.IncrementLogin(ctx, email, ip); lerr != nil {
			return LoginOutcome{}, lerr
		}
		return LoginOutcome{}, ErrInvalidTwoFactorCode
	}
	e.metricInc(MetricTwoFactorLoginSuccess)
	return e.authenticated(ctx, ident, email)
}

// VerifyTwoFactorLogin completes a login that returned
// OutcomeTwoFactorRequired. The temporary token is single use.
func (e *Engine) VerifyTwoFactorLogin(ctx context.Context, userID, code, temporaryToken string) (pair TokenPair, err error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "VerifyTwoFactorLogin")
	defer func() { endSpan(span, err) }()

	if err := e.loginTokens.Match(ctx, userID, temporaryToken); err != nil {
		if errors.Is(err, errLoginTokenNotFound) {
			e.metricInc(MetricTwoFactorLoginFailure)
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	claims, err := e.tokens.VerifyAccessToken(ctx, temporaryToken)
	if err != nil {
		return TokenPair{}, err
	}
	if claims.Subject != userID {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err := e.checkPasswordChanged(ctx, userID, claims.IssuedAt.Time); err != nil {
		return TokenPair{}, err
	}

	ident, err := e.findActive(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	if !ident.TwoFactorEnabled {
		return TokenPair{}, ErrNotEnabled
	}

	ip := ClientIPFromContext(ctx)
	if err := e.limiter.CheckLogin(ctx, ident.Email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			return TokenPair{}, ErrLoginRateLimited
		}
		return TokenPair{}, err
	}
	if !e.twoFactor.Verify(ident.TwoFactorSecret, strings.TrimSpace(code)) {
		e.metricInc(MetricTwoFactorLoginFailure)
		if lerr := e.limiter.IncrementLogin(ctx, ident.Email, ip); lerr != nil {
			return TokenPair{}, lerr
		}
		return TokenPair{}, ErrInvalidTwoFactorCode
	}

	if err := e.loginTokens.Consume(ctx, userID, temporaryToken); err != nil {
		if errors.Is(err, errLoginTokenNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	e.metricInc(MetricTwoFactorLoginSuccess)
	out, err := e.authenticated(ctx, ident, ident.Email)
	if err != nil {
		return TokenPair{}, err
	}
	return out.Tokens, nil
}

func (e *Engine) authenticated(ctx context.Context, ident identity.Identity, email string) (LoginOutcome, error) {
	p, err := e.tokens.IssuePair(ctx, subjectOf(ident))
	if err != nil {
		return LoginOutcome{}, err
	}
	if err := e.limiter.ResetLogin(ctx, email); err != nil {
		logf("reset login attempts failed: %v", err)
	}
	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	return LoginOutcome{Kind: OutcomeAuthenticated, Tokens: pairFrom(p)}, nil
}

func (e *Engine) stageLoginToken(ctx context.Context, ident identity.Identity) (string, error) {
	id, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	token, _, err := e.tokens.IssueAccessTokenForSession(subjectOf(ident), loginTokenIDPrefix+id)
	if err != nil {
		return "", err
	}
	if err := e.loginTokens.Save(ctx, ident.ID, token, e.config.TwoFactor.LoginTokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

// upgradePasswordHash rehashes the password with the primary algorithm when
// the stored hash is outdated. Failures are logged and ignored.
func (e *Engine) upgradePasswordHash(ctx context.Context, ident identity.Identity, plaintext string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	outdated, err := e.passwords.NeedsUpgrade(ident.PasswordHash)
	if err != nil || !outdated {
		return
	}
	encoded, err := e.passwords.Hash(ctx, plaintext)
	if err != nil {
		logf("password rehash failed: %v", err)
		return
	}
	if err := e.repo.UpdateCredential(ctx, ident.ID, encoded); err != nil {
		logf("password rehash persist failed: %v", err)
		return
	}
	e.metricInc(MetricPasswordRehashed)
}
