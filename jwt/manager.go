package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned when a well-formed token is past its exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers bad signatures, wrong algorithms, malformed input and failed claim checks.
	ErrTokenInvalid = errors.New("invalid token")
)

// Config configures both token kinds.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Access     KeyConfig
	Refresh    KeyConfig
	Issuer     string
	Audience   string
	Leeway     time.Duration

	// Now overrides the clock for issuance and validation. Defaults to time.Now.
	Now func() time.Time
}

// AccessClaims are carried by access tokens. Subject, IssuedAt, ExpiresAt
// and ID (jti) live in the embedded registered claims.
type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims are carried by refresh tokens. SID names the session record.
type RefreshClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager signs and parses access and refresh tokens.
type Manager struct {
	config  Config
	access  *keyset
	refresh *keyset
}

// NewManager validates cfg. The access and refresh keys must differ.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	access, err := newKeyset("access", cfg.Access)
	if err != nil {
		return nil, err
	}
	refresh, err := newKeyset("refresh", cfg.Refresh)
	if err != nil {
		return nil, err
	}
	if sameKey(access, refresh) {
		return nil, errors.New("access and refresh keys must differ")
	}

	return &Manager{config: cfg, access: access, refresh: refresh}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// CreateAccess signs an access token. jti is used verbatim; callers pass the
// paired session id or a random id for tokens without a session.
func (m *Manager) CreateAccess(sub, email, role, jti string) (string, *AccessClaims, error) {
	now := m.config.Now()
	claims := &AccessClaims{
		Email:            email,
		Role:             role,
		RegisteredClaims: m.registered(sub, jti, now, m.config.AccessTTL),
	}
	token, err := m.access.sign(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// CreateRefresh signs a refresh token for session sid.
func (m *Manager) CreateRefresh(sub, sid string) (string, *RefreshClaims, error) {
	now := m.config.Now()
	claims := &RefreshClaims{
		SID:              sid,
		RegisteredClaims: m.registered(sub, "", now, m.config.RefreshTTL),
	}
	token, err := m.refresh.sign(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// ParseAccess verifies signature and registered claims of an access token.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(m.access, tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseRefresh verifies signature and registered claims of a refresh token.
func (m *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(m.refresh, tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.SID == "" || claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseRefreshIgnoringExpiry parses a refresh token whose signature is valid
// but which may be expired. Logout uses it to revoke tokens at any age.
func (m *Manager) ParseRefreshIgnoringExpiry(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	parser := jwt.NewParser(append(m.parserOptions(m.refresh), jwt.WithoutClaimsValidation())...)
	token, err := parser.ParseWithClaims(tokenStr, claims, m.refresh.keyFunc)
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || claims.SID == "" || claims.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (m *Manager) registered(sub, jti string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		Subject:   sub,
		ID:        jti,
		Issuer:    m.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if m.config.Audience != "" {
		rc.Audience = jwt.ClaimStrings{m.config.Audience}
	}
	return rc
}

func (m *Manager) parserOptions(ks *keyset) []jwt.ParserOption {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ks.method.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}
	return options
}

func (m *Manager) parse(ks *keyset, tokenStr string, claims jwt.Claims) error {
	parser := jwt.NewParser(m.parserOptions(ks)...)
	token, err := parser.ParseWithClaims(tokenStr, claims, ks.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
