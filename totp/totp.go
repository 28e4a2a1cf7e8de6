// Package totp generates and verifies RFC 6238 time-based one-time passwords.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const secretBytes = 20

var (
	// ErrInvalidSecret is returned when a secret is empty or not valid base32.
	ErrInvalidSecret = errors.New("totp: invalid secret")
	// ErrUnsupportedAlgorithm is returned for algorithms other than SHA1, SHA256 and SHA512.
	ErrUnsupportedAlgorithm = errors.New("totp: unsupported algorithm")
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Config controls code shape and the accepted clock window.
type Config struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int
}

// DefaultConfig is six SHA1 digits per 30 second step, tolerating two steps of drift.
func DefaultConfig(issuer string) Config {
	return Config{
		Issuer:    issuer,
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      2,
	}
}

// Manager generates secrets and checks codes. It holds no mutable state.
type Manager struct {
	config Config
}

// New fills zero fields from DefaultConfig and validates the rest.
func New(cfg Config) (*Manager, error) {
	def := DefaultConfig(cfg.Issuer)
	if cfg.Digits == 0 {
		cfg.Digits = def.Digits
	}
	if cfg.Period == 0 {
		cfg.Period = def.Period
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = def.Algorithm
	}
	if cfg.Digits < 6 || cfg.Digits > 8 {
		return nil, errors.New("totp: digits must be between 6 and 8")
	}
	if cfg.Period <= 0 {
		return nil, errors.New("totp: period must be > 0")
	}
	if cfg.Skew < 0 {
		return nil, errors.New("totp: skew must be >= 0")
	}
	if _, err := hmacFunc(cfg.Algorithm); err != nil {
		return nil, err
	}
	return &Manager{config: cfg}, nil
}

// GenerateSecret returns 20 random bytes encoded as unpadded base32.
func (m *Manager) GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return b32.EncodeToString(raw), nil
}

// URI builds the otpauth:// enrollment URI rendered as a QR code by authenticator apps.
func (m *Manager) URI(secret, account string) string {
	issuer := m.config.Issuer
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("algorithm", strings.ToUpper(m.config.Algorithm))
	v.Set("digits", strconv.Itoa(m.config.Digits))
	v.Set("period", strconv.Itoa(m.config.Period))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// Code returns the code for secret at t.
func (m *Manager) Code(secret string, t time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return m.codeAt(key, m.counter(t))
}

// Verify accepts code when it matches any step within Skew of t.
// Malformed codes are a mismatch, not an error.
func (m *Manager) Verify(secret, code string, t time.Time) (bool, error) {
	ok, _, err := m.VerifyCounter(secret, code, t)
	return ok, err
}

// VerifyCounter is Verify that also reports the matched counter.
func (m *Manager) VerifyCounter(secret, code string, t time.Time) (bool, int64, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != m.config.Digits || !numeric(trimmed) {
		return false, 0, nil
	}
	key, err := decodeSecret(secret)
	if err != nil {
		return false, 0, err
	}

	base := m.counter(t)
	for step := -m.config.Skew; step <= m.config.Skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := m.codeAt(key, counter)
		if err != nil {
			return false, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, counter, nil
		}
	}
	return false, 0, nil
}

func (m *Manager) counter(t time.Time) int64 {
	return t.Unix() / int64(m.config.Period)
}

func (m *Manager) codeAt(key []byte, counter int64) (string, error) {
	return hotp(key, counter, m.config.Digits, m.config.Algorithm)
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "="))
	if s == "" {
		return nil, ErrInvalidSecret
	}
	key, err := b32.DecodeString(s)
	if err != nil || len(key) == 0 {
		return nil, ErrInvalidSecret
	}
	return key, nil
}

func hotp(key []byte, counter int64, digits int, algorithm string) (string, error) {
	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))
	mac := hmac.New(hf, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

func numeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
