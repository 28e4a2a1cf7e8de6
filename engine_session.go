package authcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/tokens"
)

// Refresh rotates refreshToken: the presented token is revoked and a new
// pair is minted. Of several concurrent refreshes with the same token
// exactly one succeeds; the rest get ErrTokenBlacklisted.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (pair TokenPair, err error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Refresh")
	defer func() {
		if err != nil {
			e.metricInc(MetricRefreshFailure)
		}
		endSpan(span, err)
	}()

	claims, err := e.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenBlacklisted) {
			e.metricInc(MetricRefreshReuseDetected)
		}
		return TokenPair{}, err
	}

	ident, err := e.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			if rerr := e.tokens.RevokeRefreshToken(ctx, refreshToken); rerr != nil {
				return TokenPair{}, rerr
			}
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, repoErr(err)
	}
	if ident.Status != identity.StatusActive {
		if rerr := e.tokens.RevokeRefreshToken(ctx, refreshToken); rerr != nil {
			return TokenPair{}, rerr
		}
		return TokenPair{}, ErrAccountNotActive
	}

	if err := e.tokens.ConsumeRefreshToken(ctx, claims); err != nil {
		if errors.Is(err, ErrTokenBlacklisted) {
			e.metricInc(MetricRefreshReuseDetected)
		}
		return TokenPair{}, err
	}
	e.metricInc(MetricSessionInvalidated)

	p, err := e.tokens.IssuePair(ctx, subjectOf(ident))
	if err != nil {
		return TokenPair{}, err
	}
	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricRefreshSuccess)
	return pairFrom(p), nil
}

// Logout revokes the session behind refreshToken. Malformed, expired and
// already revoked tokens are accepted silently; only store failures are
// reported.
func (e *Engine) Logout(ctx context.Context, refreshToken string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Logout")
	defer func() { endSpan(span, err) }()

	if err := e.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return err
	}
	e.metricInc(MetricLogout)
	return nil
}

// LogoutAll revokes every session of userID.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "LogoutAll")
	defer func() { endSpan(span, err) }()

	n, err := e.tokens.RevokeAllRefreshTokens(ctx, userID)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		e.metricInc(MetricSessionInvalidated)
	}
	e.metricInc(MetricLogoutAll)
	return nil
}

// ValidateAccess verifies an access token: signature, expiry, session
// blacklist and the password-changed marker. Temporary two-factor tokens
// are rejected with ErrInvalidToken.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (claims AccessClaims, err error) {
	if e == nil {
		return AccessClaims{}, ErrEngineNotReady
	}
	start := e.now()
	ctx, span := e.startSpan(ctx, "ValidateAccess")
	defer func() {
		if err != nil {
			e.metricInc(MetricValidateFailure)
		}
		endSpan(span, err)
		e.metrics.Observe(MetricValidateLatency, e.now().Sub(start))
	}()

	c, err := e.tokens.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		return AccessClaims{}, err
	}
	if strings.HasPrefix(c.ID, loginTokenIDPrefix) {
		return AccessClaims{}, ErrInvalidToken
	}
	if err := e.checkPasswordChanged(ctx, c.Subject, c.IssuedAt.Time); err != nil {
		return AccessClaims{}, err
	}

	return AccessClaims{
		UserID:    c.Subject,
		Email:     c.Email,
		Role:      c.Role,
		SessionID: c.ID,
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// ActiveSessions lists the live session ids of userID.
func (e *Engine) ActiveSessions(ctx context.Context, userID string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.tokens.ActiveSessions(ctx, userID)
}

func (e *Engine) checkPasswordChanged(ctx context.Context, userID string, issuedAt time.Time) error {
	err := e.tokens.CheckPasswordChanged(ctx, userID, issuedAt)
	if errors.Is(err, tokens.ErrPasswordChanged) {
		return ErrTokenBlacklisted
	}
	return err
}
