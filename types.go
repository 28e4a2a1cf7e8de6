package authcore

import (
	"time"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/tokens"
)

// OutcomeKind distinguishes the successful branches of Login.
type OutcomeKind uint8

const (
	// OutcomeAuthenticated means Tokens holds a fresh access/refresh pair.
	OutcomeAuthenticated OutcomeKind = iota + 1
	// OutcomeTwoFactorRequired means the caller must finish with VerifyTwoFactorLogin.
	OutcomeTwoFactorRequired
)

// String returns a stable label for logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeTwoFactorRequired:
		return "two_factor_required"
	default:
		return "unknown"
	}
}

// LoginOutcome is the result of a successful credential check. Rejections
// are reported through the returned error instead.
type LoginOutcome struct {
	Kind OutcomeKind

	// Tokens is set when Kind is OutcomeAuthenticated.
	Tokens TokenPair

	// TemporaryToken and UserID are set when Kind is OutcomeTwoFactorRequired.
	TemporaryToken string
	UserID         string
}

// Err returns ErrTwoFactorRequired for outcomes that are not yet
// authenticated, nil otherwise. Handy for callers that treat login as binary.
func (o LoginOutcome) Err() error {
	if o.Kind == OutcomeAuthenticated {
		return nil
	}
	return ErrTwoFactorRequired
}

// TokenPair is an access/refresh pair bound to one session.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
}

func pairFrom(p tokens.Pair) TokenPair {
	return TokenPair{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
		SessionID:        p.SessionID,
	}
}

// LoginRequest carries credentials. Code is an optional TOTP code that lets
// two-factor users finish in a single call.
type LoginRequest struct {
	Email    string
	Password string
	Code     string
}

// RegisterRequest describes a new account.
type RegisterRequest struct {
	Email    string
	Password string
	Name     string
}

// RegisterResult is returned by Register. No tokens are issued until the
// email has been verified and the user logs in.
type RegisterResult struct {
	Message string
	Email   string
	UserID  string
}

// AccessClaims is the verified content of an access token.
type AccessClaims struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TwoFactorSetup carries the staged secret and its otpauth:// URI for QR rendering.
type TwoFactorSetup struct {
	Secret string
	URI    string
}

// AccountStatus is the lifecycle state of an identity.
type AccountStatus = identity.Status

const (
	AccountActive    = identity.StatusActive
	AccountInactive  = identity.StatusInactive
	AccountSuspended = identity.StatusSuspended
	AccountDeleted   = identity.StatusDeleted
)

func subjectOf(ident identity.Identity) tokens.Subject {
	return tokens.Subject{UserID: ident.ID, Email: ident.Email, Role: ident.Role}
}
