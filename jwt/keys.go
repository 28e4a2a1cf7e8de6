package jwt

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the JWT algorithm for a key.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

const minHMACKeyBytes = 32

// KeyConfig describes one signing key. For HS256 only PrivateKey is used.
// For Ed25519, PrivateKey may be omitted on verify-only deployments.
// VerifyKeys enables kid-based rotation: tokens must then carry a kid present in the map.
type KeyConfig struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	KeyID         string
	VerifyKeys    map[string][]byte
}

type keyset struct {
	cfg    KeyConfig
	method jwt.SigningMethod
}

func newKeyset(name string, cfg KeyConfig) (*keyset, error) {
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	ks := &keyset{cfg: cfg}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACKeyBytes {
			return nil, fmt.Errorf("%s key: hs256 requires a secret of at least %d bytes", name, minHMACKeyBytes)
		}
		ks.method = jwt.SigningMethodHS256
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, fmt.Errorf("%s key: %w", name, err)
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, fmt.Errorf("%s key: %w", name, err)
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, fmt.Errorf("%s key: ed25519 requires public key or verify key set", name)
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, fmt.Errorf("%s key: verify key map contains empty kid", name)
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("%s key: invalid ed25519 verify key for kid %q: %w", name, kid, err)
			}
		}
		ks.method = jwt.SigningMethodEdDSA
	default:
		return nil, fmt.Errorf("%s key: unsupported signing method %q", name, cfg.SigningMethod)
	}

	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, fmt.Errorf("%s key: KeyID is not present in VerifyKeys", name)
		}
	}
	return ks, nil
}

// identity returns the bytes that identify this key for the distinct-keys check.
func (k *keyset) identity() []byte {
	if k.cfg.SigningMethod == MethodHS256 {
		return k.cfg.PrivateKey
	}
	if len(k.cfg.PublicKey) > 0 {
		if pub, err := parseEdPublicKey(k.cfg.PublicKey); err == nil {
			return pub
		}
	}
	if len(k.cfg.PrivateKey) > 0 {
		if priv, err := parseEdPrivateKey(k.cfg.PrivateKey); err == nil {
			return priv.Public().(ed25519.PublicKey)
		}
	}
	return nil
}

func sameKey(a, b *keyset) bool {
	ia, ib := a.identity(), b.identity()
	return len(ia) > 0 && bytes.Equal(ia, ib)
}

func (k *keyset) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(k.method, claims)
	if k.cfg.KeyID != "" {
		token.Header["kid"] = k.cfg.KeyID
	}

	var signKey interface{}
	switch k.cfg.SigningMethod {
	case MethodHS256:
		signKey = k.cfg.PrivateKey
	default:
		if len(k.cfg.PrivateKey) == 0 {
			return "", errors.New("no private key configured")
		}
		priv, err := parseEdPrivateKey(k.cfg.PrivateKey)
		if err != nil {
			return "", err
		}
		signKey = priv
	}
	return token.SignedString(signKey)
}

func (k *keyset) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != k.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(k.cfg.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := k.cfg.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return k.verifyKey(key)
	}

	if k.cfg.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != k.cfg.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	if k.cfg.SigningMethod == MethodHS256 {
		return k.cfg.PrivateKey, nil
	}
	return k.verifyKey(k.cfg.PublicKey)
}

func (k *keyset) verifyKey(key []byte) (interface{}, error) {
	if k.cfg.SigningMethod == MethodHS256 {
		return key, nil
	}
	return parseEdPublicKey(key)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
