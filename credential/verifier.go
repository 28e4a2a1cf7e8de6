// Package credential checks an email and password against the identity
// repository with a uniform failure for unknown emails and wrong passwords.
package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrEthical07/authcore/identity"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotActive is returned when the password matched but the account is not ACTIVE.
	ErrAccountNotActive = errors.New("account not active")
)

// PasswordVerifier is the hashing dependency. password.Pool satisfies it.
type PasswordVerifier interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, encodedHash string) (bool, error)
}

// Verifier authenticates email+password pairs. It does not look at email
// verification or two-factor state.
type Verifier struct {
	repo   identity.Repository
	hasher PasswordVerifier

	dummyMu   sync.Mutex
	dummyHash string
}

// NewVerifier wires a Verifier.
func NewVerifier(repo identity.Repository, hasher PasswordVerifier) *Verifier {
	return &Verifier{repo: repo, hasher: hasher}
}

// Verify returns the identity when email and password match an ACTIVE account.
// Unknown emails still pay for one hash verification so latency does not
// reveal whether an account exists.
func (v *Verifier) Verify(ctx context.Context, email, password string) (identity.Identity, error) {
	ident, err := v.repo.FindByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			v.burn(ctx, password)
			return identity.Identity{}, ErrInvalidCredentials
		}
		return identity.Identity{}, fmt.Errorf("find identity: %w", err)
	}

	ok, err := v.hasher.Verify(ctx, password, ident.PasswordHash)
	if err != nil {
		if ctx.Err() != nil {
			return identity.Identity{}, ctx.Err()
		}
		// a malformed stored hash is indistinguishable from a wrong password to the caller
		return identity.Identity{}, ErrInvalidCredentials
	}
	if !ok {
		return identity.Identity{}, ErrInvalidCredentials
	}
	if ident.Status != identity.StatusActive {
		return identity.Identity{}, ErrAccountNotActive
	}
	return ident, nil
}

// burn runs one verification against a dummy hash. The dummy is built
// without the request context, and a failed build is retried on the next call.
func (v *Verifier) burn(ctx context.Context, password string) {
	dummy, err := v.dummy()
	if err != nil {
		return
	}
	_, _ = v.hasher.Verify(ctx, password, dummy)
}

func (v *Verifier) dummy() (string, error) {
	v.dummyMu.Lock()
	defer v.dummyMu.Unlock()
	if v.dummyHash != "" {
		return v.dummyHash, nil
	}
	h, err := v.hasher.Hash(context.Background(), "authcore-dummy-password-0")
	if err != nil {
		return "", err
	}
	v.dummyHash = h
	return h, nil
}
