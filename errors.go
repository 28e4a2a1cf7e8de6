package authcore

import (
	"errors"

	"github.com/MrEthical07/authcore/codes"
	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/tokens"
	"github.com/MrEthical07/authcore/twofactor"
)

// Errors returned by Engine operations. Component sentinels are re-exported
// so callers only need to match against this package with errors.Is.
var (
	// ErrInvalidCredentials is returned for unknown emails, wrong passwords and
	// mismatched two-factor login tokens. The cases are indistinguishable.
	ErrInvalidCredentials = credential.ErrInvalidCredentials
	// ErrAccountNotActive is returned when the account status is not ACTIVE.
	ErrAccountNotActive = credential.ErrAccountNotActive
	// ErrEmailNotVerified is returned by Login before the email has been confirmed.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrTwoFactorRequired is returned by LoginOutcome.Err for outcomes that still need a TOTP code.
	ErrTwoFactorRequired = errors.New("two-factor authentication required")
	// ErrInvalidTwoFactorCode is returned when a TOTP code does not match.
	ErrInvalidTwoFactorCode = twofactor.ErrInvalidCode

	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = tokens.ErrTokenExpired
	// ErrTokenBlacklisted is returned for revoked, rotated or pre-password-change tokens.
	ErrTokenBlacklisted = tokens.ErrTokenBlacklisted
	// ErrInvalidToken is returned for tokens failing signature or claim checks.
	ErrInvalidToken = tokens.ErrInvalidToken

	// ErrPasswordTooWeak is returned when a new password fails the strength policy.
	ErrPasswordTooWeak = password.ErrTooWeak
	// ErrSamePassword is returned when the new password equals the current one.
	ErrSamePassword = errors.New("new password must differ from the current password")

	// ErrCodeExpiredOrMissing is returned when no live one-time code exists.
	ErrCodeExpiredOrMissing = codes.ErrCodeExpiredOrMissing
	// ErrCodeMismatch is returned when a one-time code does not match.
	ErrCodeMismatch = codes.ErrCodeMismatch
	// ErrCodeAttemptsExceeded is wrapped together with ErrCodeMismatch on the
	// attempt that exhausted the budget. The code is gone afterwards.
	ErrCodeAttemptsExceeded = codes.ErrCodeAttemptsExceeded

	// ErrAlreadyEnabled is returned when two-factor is already on.
	ErrAlreadyEnabled = twofactor.ErrAlreadyEnabled
	// ErrNotEnabled is returned when disabling two-factor for a user without it.
	ErrNotEnabled = twofactor.ErrNotEnabled
	// ErrSetupExpired is returned when no staged two-factor secret exists.
	ErrSetupExpired = twofactor.ErrSetupExpired

	// ErrInvalidEmail is returned by Register for an empty or malformed email.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrEmailTaken is returned by Register for an already registered email.
	ErrEmailTaken = identity.ErrDuplicateEmail
	// ErrUserNotFound is returned by user-id based operations for unknown ids.
	ErrUserNotFound = identity.ErrNotFound
	// ErrInvalidStatus is returned by UpdateAccountStatus for unknown statuses.
	ErrInvalidStatus = identity.ErrInvalidStatus
	// ErrLoginRateLimited is returned when the failed-login budget is spent.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrEngineNotReady is returned when a nil or closed Engine is used.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrStoreUnavailable wraps ephemeral store failures.
	ErrStoreUnavailable = store.ErrUnavailable
)
