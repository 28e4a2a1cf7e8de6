package password

import (
	"errors"
	"unicode"
)

var (
	// ErrTooWeak is returned when a candidate password fails the Policy.
	ErrTooWeak = errors.New("password too weak")
	// ErrTooLong is returned by Multi for input above Policy.MaxBytes.
	ErrTooLong = errors.New("password exceeds maximum length")
)

// Policy is the minimum strength rule applied to new passwords.
type Policy struct {
	MinLength     int
	MaxBytes      int
	RequireLetter bool
	RequireDigit  bool
}

// DefaultPolicy requires 8+ characters with at least one letter and one digit.
// MaxBytes is 72 so every policy-valid password also fits bcrypt.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     8,
		MaxBytes:      72,
		RequireLetter: true,
		RequireDigit:  true,
	}
}

// Check returns ErrTooWeak when candidate violates the policy.
func (p Policy) Check(candidate string) error {
	if len([]rune(candidate)) < p.MinLength {
		return ErrTooWeak
	}
	if !p.Fits(candidate) {
		return ErrTooWeak
	}

	var hasLetter, hasDigit bool
	for _, r := range candidate {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if p.RequireLetter && !hasLetter {
		return ErrTooWeak
	}
	if p.RequireDigit && !hasDigit {
		return ErrTooWeak
	}
	return nil
}

// Fits reports whether candidate is within MaxBytes. It is the only rule
// applied when verifying, so older passwords that predate the strength
// rules still verify.
func (p Policy) Fits(candidate string) bool {
	return p.MaxBytes <= 0 || len(candidate) <= p.MaxBytes
}
