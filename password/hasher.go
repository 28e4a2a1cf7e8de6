package password

import (
	"errors"
)

// ErrUnsupportedHash is returned when an encoded hash matches no known algorithm.
var ErrUnsupportedHash = errors.New("unsupported password hash format")

// Hasher hashes and verifies passwords. Verify returns (false, nil) on a
// clean mismatch and an error only for malformed hashes or input.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Schemer is implemented by hashers Multi can route to. Scheme returns the
// identifier found in the hashes the hasher produces.
type Schemer interface {
	Scheme() string
}

// Upgrader reports whether a stored hash was produced with outdated parameters.
type Upgrader interface {
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Multi hashes with Primary and verifies any hash produced by Primary or one
// of the Legacy hashers, routed by scheme. Input longer than
// Policy.MaxBytes is rejected with ErrTooLong before any hashing work.
type Multi struct {
	Policy  Policy
	Primary Hasher
	Legacy  []Hasher
}

// NewMulti returns a Multi that hashes with primary under policy's length bound.
func NewMulti(policy Policy, primary Hasher, legacy ...Hasher) *Multi {
	return &Multi{Policy: policy, Primary: primary, Legacy: legacy}
}

func (m *Multi) Hash(password string) (string, error) {
	if m == nil || m.Primary == nil {
		return "", errors.New("password: no primary hasher")
	}
	if !m.Policy.Fits(password) {
		return "", ErrTooLong
	}
	return m.Primary.Hash(password)
}

func (m *Multi) Verify(password, encodedHash string) (bool, error) {
	h := m.route(encodedHash)
	if h == nil {
		return false, ErrUnsupportedHash
	}
	if !m.Policy.Fits(password) {
		return false, ErrTooLong
	}
	return h.Verify(password, encodedHash)
}

// NeedsUpgrade is true when the hash belongs to a legacy algorithm, or when
// the primary reports weaker parameters.
func (m *Multi) NeedsUpgrade(encodedHash string) (bool, error) {
	h := m.route(encodedHash)
	if h == nil {
		return false, ErrUnsupportedHash
	}
	if h != m.Primary {
		return true, nil
	}
	if up, ok := h.(Upgrader); ok {
		return up.NeedsUpgrade(encodedHash)
	}
	return false, nil
}

func (m *Multi) route(encodedHash string) Hasher {
	if m == nil {
		return nil
	}
	id := scheme(encodedHash)
	if id == "" {
		return nil
	}
	for _, h := range append([]Hasher{m.Primary}, m.Legacy...) {
		if s, ok := h.(Schemer); ok && s.Scheme() == id {
			return h
		}
	}
	return nil
}
