package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func hsKey(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

func newHSManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Access:     KeyConfig{SigningMethod: MethodHS256, PrivateKey: hsKey('a')},
		Refresh:    KeyConfig{SigningMethod: MethodHS256, PrivateKey: hsKey('r')},
		Issuer:     "authcore",
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestAccessRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	token, issued, err := m.CreateAccess("u1", "a@x.com", "user", "s1")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}
	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "a@x.com" || claims.Role != "user" || claims.ID != "s1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.ExpiresAt.Equal(issued.ExpiresAt.Time) || claims.ExpiresAt.Sub(claims.IssuedAt.Time) != 15*time.Minute {
		t.Fatalf("unexpected lifetime iat=%v exp=%v", claims.IssuedAt, claims.ExpiresAt)
	}
}

func TestAccessExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	token, _, _ := m.CreateAccess("u1", "a@x.com", "user", "s1")
	clock.Advance(15*time.Minute + time.Second)

	if _, err := m.ParseAccess(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	token, _, err := m.CreateRefresh("u1", "sid-1")
	if err != nil {
		t.Fatalf("CreateRefresh: %v", err)
	}
	claims, err := m.ParseRefresh(token)
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if claims.Subject != "u1" || claims.SID != "sid-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	clock.Advance(8 * 24 * time.Hour)
	if _, err := m.ParseRefresh(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if c, err := m.ParseRefreshIgnoringExpiry(token); err != nil || c.SID != "sid-1" {
		t.Fatalf("ParseRefreshIgnoringExpiry = %+v, %v", c, err)
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	access, _, _ := m.CreateAccess("u1", "a@x.com", "user", "s1")
	refresh, _, _ := m.CreateRefresh("u1", "s1")

	if _, err := m.ParseRefresh(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := m.ParseAccess(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
}

func TestNewManagerRejectsSharedKey(t *testing.T) {
	_, err := NewManager(Config{
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Access:     KeyConfig{SigningMethod: MethodHS256, PrivateKey: hsKey('x')},
		Refresh:    KeyConfig{SigningMethod: MethodHS256, PrivateKey: hsKey('x')},
	})
	if err == nil {
		t.Fatal("expected identical access and refresh keys to be rejected")
	}

	pub, priv := newEdKeys(t)
	_, err = NewManager(Config{
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Access:     KeyConfig{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub},
		Refresh:    KeyConfig{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub},
	})
	if err == nil {
		t.Fatal("expected identical ed25519 keys to be rejected")
	}
}

func TestNewManagerRejectsShortHMACKey(t *testing.T) {
	_, err := NewManager(Config{
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Access:     KeyConfig{SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		Refresh:    KeyConfig{SigningMethod: MethodHS256, PrivateKey: hsKey('r')},
	})
	if err == nil {
		t.Fatal("expected short hs256 secret to be rejected")
	}
}

func TestParseAccessRejectsWrongAlgorithm(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Access:     KeyConfig{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub},
		Refresh:    KeyConfig{SigningMethod: MethodHS256, PrivateKey: hsKey('r')},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	now := time.Now()
	claims := AccessClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		ID:        "s1",
		IssuedAt:  gjwt.NewNumericDate(now),
		ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(hsKey('r'))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseAccess(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestParseAccessIssuerAudienceAndLeeway(t *testing.T) {
	pub, priv := newEdKeys(t)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m, err := NewManager(Config{
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Access:     KeyConfig{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub},
		Refresh:    KeyConfig{SigningMethod: MethodHS256, PrivateKey: hsKey('r')},
		Issuer:     "authcore",
		Audience:   "api",
		Leeway:     30 * time.Second,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	sign := func(iss, aud string, exp time.Time) string {
		c := AccessClaims{RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u1",
			ID:        "s1",
			Issuer:    iss,
			Audience:  gjwt.ClaimStrings{aud},
			IssuedAt:  gjwt.NewNumericDate(clock.Now().Add(-time.Minute)),
			ExpiresAt: gjwt.NewNumericDate(exp),
		}}
		tok, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c).SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return tok
	}

	now := clock.Now()
	if _, err := m.ParseAccess(sign("other", "api", now.Add(time.Minute))); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
	if _, err := m.ParseAccess(sign("authcore", "other-api", now.Add(time.Minute))); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
	if _, err := m.ParseAccess(sign("authcore", "api", now.Add(-15*time.Second))); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	if _, err := m.ParseAccess(sign("authcore", "api", now.Add(-2*time.Minute))); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired token to fail with ErrTokenExpired, got %v", err)
	}
}

func TestParseAccessKeyRotation(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, priv2 := newEdKeys(t)
	refresh := KeyConfig{SigningMethod: MethodHS256, PrivateKey: hsKey('r')}

	old, err := NewManager(Config{
		AccessTTL: time.Minute, RefreshTTL: time.Hour, Refresh: refresh,
		Access: KeyConfig{SigningMethod: MethodEd25519, PrivateKey: priv1, PublicKey: pub1, KeyID: "k1"},
	})
	if err != nil {
		t.Fatalf("NewManager(old): %v", err)
	}
	rotated, err := NewManager(Config{
		AccessTTL: time.Minute, RefreshTTL: time.Hour, Refresh: refresh,
		Access: KeyConfig{
			SigningMethod: MethodEd25519,
			PrivateKey:    priv2,
			KeyID:         "k2",
			VerifyKeys:    map[string][]byte{"k1": pub1, "k2": pub2},
		},
	})
	if err != nil {
		t.Fatalf("NewManager(rotated): %v", err)
	}

	oldToken, _, _ := old.CreateAccess("u1", "a@x.com", "user", "s1")
	if _, err := rotated.ParseAccess(oldToken); err != nil {
		t.Fatalf("token signed with retired key should verify: %v", err)
	}

	newToken, _, _ := rotated.CreateAccess("u1", "a@x.com", "user", "s2")
	if _, err := old.ParseAccess(newToken); err == nil {
		t.Fatal("old manager must not accept unknown kid")
	}
}
