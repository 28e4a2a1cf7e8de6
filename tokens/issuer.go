package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/session"
)

var (
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidToken is returned for tokens that fail signature or claim checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenBlacklisted is returned for revoked or already-rotated tokens.
	ErrTokenBlacklisted = errors.New("token blacklisted")
	// ErrPasswordChanged is returned for tokens issued before the user's latest password change.
	ErrPasswordChanged = errors.New("token issued before password change")
)

// Subject is the identity data embedded into access tokens.
type Subject struct {
	UserID string
	Email  string
	Role   string
}

// Pair is an access/refresh token pair bound to one session.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
}

// Issuer mints and checks tokens against session state.
type Issuer struct {
	jwt      *jwt.Manager
	sessions *session.Store
	now      func() time.Time
}

// NewIssuer wires an Issuer. now defaults to time.Now and should match the
// clock configured on the jwt.Manager.
func NewIssuer(manager *jwt.Manager, sessions *session.Store, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{jwt: manager, sessions: sessions, now: now}
}

// IssueAccessToken signs a standalone access token with a random jti. It
// touches no state.
func (i *Issuer) IssueAccessToken(sub Subject) (string, *jwt.AccessClaims, error) {
	jti, err := internal.NewSessionID()
	if err != nil {
		return "", nil, err
	}
	return i.IssueAccessTokenForSession(sub, jti)
}

// IssueAccessTokenForSession signs an access token whose jti is sessionID.
func (i *Issuer) IssueAccessTokenForSession(sub Subject, sessionID string) (string, *jwt.AccessClaims, error) {
	return i.jwt.CreateAccess(sub.UserID, sub.Email, sub.Role, sessionID)
}

// IssueRefreshToken creates a session record for userID and signs a refresh token for it.
func (i *Issuer) IssueRefreshToken(ctx context.Context, userID string) (string, *jwt.RefreshClaims, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", nil, err
	}
	token, claims, err := i.jwt.CreateRefresh(userID, sid)
	if err != nil {
		return "", nil, err
	}

	rec := session.Session{UserID: userID, SessionID: sid, IssuedAt: claims.IssuedAt.Time}
	if err := i.sessions.Save(ctx, rec, i.jwt.RefreshTTL()); err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// IssuePair mints a refresh session and its paired access token.
func (i *Issuer) IssuePair(ctx context.Context, sub Subject) (Pair, error) {
	refresh, rc, err := i.IssueRefreshToken(ctx, sub.UserID)
	if err != nil {
		return Pair{}, err
	}
	access, ac, err := i.IssueAccessTokenForSession(sub, rc.SID)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  ac.ExpiresAt.Time,
		RefreshExpiresAt: rc.ExpiresAt.Time,
		SessionID:        rc.SID,
	}, nil
}

// VerifyAccessToken checks signature, expiry and the blacklist entry for the token's jti.
func (i *Issuer) VerifyAccessToken(ctx context.Context, token string) (*jwt.AccessClaims, error) {
	claims, err := i.jwt.ParseAccess(token)
	if err != nil {
		return nil, mapParseError(err)
	}
	revoked, err := i.sessions.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenBlacklisted
	}
	return claims, nil
}

// VerifyRefreshToken checks signature and expiry, then requires a live,
// non-blacklisted session record.
func (i *Issuer) VerifyRefreshToken(ctx context.Context, token string) (*jwt.RefreshClaims, error) {
	claims, err := i.jwt.ParseRefresh(token)
	if err != nil {
		return nil, mapParseError(err)
	}
	revoked, err := i.sessions.IsBlacklisted(ctx, claims.SID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenBlacklisted
	}
	ok, err := i.sessions.Exists(ctx, claims.Subject, claims.SID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTokenBlacklisted
	}
	return claims, nil
}

// ConsumeRefreshToken rotates out a verified refresh session. Only the
// caller whose delete removed the record succeeds; others get
// ErrTokenBlacklisted. The session id is blacklisted either way.
func (i *Issuer) ConsumeRefreshToken(ctx context.Context, claims *jwt.RefreshClaims) error {
	won, err := i.sessions.Consume(ctx, claims.Subject, claims.SID)
	if err != nil {
		return err
	}
	if err := i.sessions.Blacklist(ctx, claims.SID, i.remaining(claims.ExpiresAt.Time)); err != nil {
		return err
	}
	if !won {
		return ErrTokenBlacklisted
	}
	return nil
}

// RevokeRefreshToken revokes the session behind token. Malformed, expired
// or foreign tokens are ignored; only store failures are returned.
func (i *Issuer) RevokeRefreshToken(ctx context.Context, token string) error {
	claims, err := i.jwt.ParseRefreshIgnoringExpiry(token)
	if err != nil {
		return nil
	}
	if err := i.sessions.Delete(ctx, claims.Subject, claims.SID); err != nil {
		return err
	}
	return i.sessions.Blacklist(ctx, claims.SID, i.remaining(claims.ExpiresAt.Time))
}

// RevokeAllRefreshTokens revokes every indexed session of userID and
// returns how many were revoked.
func (i *Issuer) RevokeAllRefreshTokens(ctx context.Context, userID string) (int, error) {
	ids, err := i.sessions.DeleteAllForUser(ctx, userID, i.jwt.RefreshTTL())
	return len(ids), err
}

// MarkPasswordChanged records at as the user's password-change time.
// Access tokens issued in an earlier second are rejected afterwards.
func (i *Issuer) MarkPasswordChanged(ctx context.Context, userID string, at time.Time) error {
	return i.sessions.MarkPasswordChanged(ctx, userID, at, i.jwt.RefreshTTL())
}

// CheckPasswordChanged returns ErrPasswordChanged when issuedAt is strictly
// before the recorded change second.
//
// JWT iat has whole-second precision, so a token issued earlier in the same
// second as the change still passes. Tokens from IssuePair are also covered
// by the session blacklist. Callers of IssueAccessToken that need same-second
// revocation must track those tokens themselves.
func (i *Issuer) CheckPasswordChanged(ctx context.Context, userID string, issuedAt time.Time) error {
	changed, ok, err := i.sessions.PasswordChangedAt(ctx, userID)
	if err != nil {
		return err
	}
	if ok && issuedAt.Unix() < changed.Unix() {
		return ErrPasswordChanged
	}
	return nil
}

// ActiveSessions lists the user's live session ids.
func (i *Issuer) ActiveSessions(ctx context.Context, userID string) ([]string, error) {
	return i.sessions.ActiveSessionIDs(ctx, userID)
}

func (i *Issuer) remaining(exp time.Time) time.Duration {
	return exp.Sub(i.now())
}

func mapParseError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrInvalidToken
}
