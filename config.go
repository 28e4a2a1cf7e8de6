package authcore

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// Config is the complete Engine configuration. Start from DefaultConfig and
// override fields; Builder.Build calls Validate.
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	Password  PasswordConfig
	TOTP      TOTPConfig
	Codes     CodesConfig
	TwoFactor TwoFactorConfig
	Security  SecurityConfig
	Mail      MailConfig
	Metrics   MetricsConfig
	Store     StoreConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access-token signing and the refresh-token key.
// Access and Refresh must use different key material.
type JWTConfig struct {
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	Leeway    time.Duration
	Access    jwt.KeyConfig
	Refresh   jwt.KeyConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by authcore APIs.
//
// RefreshTTL is the lifetime of refresh tokens, their session records, the
// per-user session index and the password-changed marker.
type SessionConfig struct {
	RefreshTTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the primary hash algorithm, its cost and the
// strength policy applied to new passwords.
type PasswordConfig struct {
	Algorithm   string // "argon2id" (default) or "bcrypt"
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	BcryptCost  int

	// HashConcurrency bounds simultaneous hash/verify calls. Zero means GOMAXPROCS.
	HashConcurrency int
	UpgradeOnLogin  bool

	MinLength     int
	MaxBytes      int
	RequireLetter bool
	RequireDigit  bool
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig defines a public type used by authcore APIs.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int
}

/*
====================================
CODES CONFIG
====================================
*/

// CodesConfig configures email-verification and password-reset codes.
type CodesConfig struct {
	TTL         time.Duration
	Digits      int
	MaxAttempts int
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TwoFactorConfig bounds the enrollment stage and the staged login token.
type TwoFactorConfig struct {
	SetupTTL      time.Duration
	LoginTokenTTL time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls failed-login throttling. MaxLoginAttempts <= 0
// disables it.
type SecurityConfig struct {
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableIPThrottle      bool
}

/*
====================================
MAIL CONFIG
====================================
*/

// MailConfig controls code delivery. When Async is set, sends go through a
// bounded queue of BufferSize and are dropped when it is full.
type MailConfig struct {
	Async       bool
	BufferSize  int
	SendTimeout time.Duration
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by authcore APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig configures the ephemeral store key layout.
type StoreConfig struct {
	KeyPrefix string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. Signing keys are left empty
// and must be supplied before Build.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
			Issuer:    "authcore",
			Access:    jwt.KeyConfig{SigningMethod: jwt.MethodHS256},
			Refresh:   jwt.KeyConfig{SigningMethod: jwt.MethodHS256},
		},
		Session: SessionConfig{
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Algorithm:      "argon2id",
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			BcryptCost:     12,
			UpgradeOnLogin: true,
			MinLength:      8,
			MaxBytes:       72,
			RequireLetter:  true,
			RequireDigit:   true,
		},
		TOTP: TOTPConfig{
			Issuer:    "authcore",
			Digits:    6,
			Period:    30,
			Algorithm: "SHA1",
			Skew:      2,
		},
		Codes: CodesConfig{
			TTL:         15 * time.Minute,
			Digits:      6,
			MaxAttempts: 5,
		},
		TwoFactor: TwoFactorConfig{
			SetupTTL:      10 * time.Minute,
			LoginTokenTTL: 5 * time.Minute,
		},
		Security: SecurityConfig{
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			EnableIPThrottle:      false,
		},
		Mail: MailConfig{
			Async:       true,
			BufferSize:  256,
			SendTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Access = cloneKey(cfg.JWT.Access)
	out.JWT.Refresh = cloneKey(cfg.JWT.Refresh)
	return out
}

func cloneKey(k jwt.KeyConfig) jwt.KeyConfig {
	out := k
	out.PrivateKey = cloneBytes(k.PrivateKey)
	out.PublicKey = cloneBytes(k.PublicKey)
	if k.VerifyKeys != nil {
		out.VerifyKeys = make(map[string][]byte, len(k.VerifyKeys))
		for kid, v := range k.VerifyKeys {
			out.VerifyKeys[kid] = cloneBytes(v)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field. Key material itself is checked
// by the jwt package when the Engine is built.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if len(c.JWT.Access.PrivateKey) == 0 && len(c.JWT.Access.PublicKey) == 0 {
		return errors.New("JWT Access key is required")
	}
	if len(c.JWT.Refresh.PrivateKey) == 0 && len(c.JWT.Refresh.PublicKey) == 0 {
		return errors.New("JWT Refresh key is required")
	}

	// Session
	if c.Session.RefreshTTL <= 0 {
		return errors.New("Session RefreshTTL must be > 0")
	}
	if c.Session.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("Session RefreshTTL must be >= JWT AccessTTL")
	}

	// Password
	switch strings.ToLower(c.Password.Algorithm) {
	case "argon2id", "bcrypt":
	default:
		return errors.New("Password Algorithm must be 'argon2id' or 'bcrypt'")
	}
	// argon2id parameters are checked for both algorithms; existing hashes
	// of the other kind stay verifiable.
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.BcryptCost != 0 && (c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31) {
		return errors.New("Password BcryptCost must be between 4 and 31")
	}
	if c.Password.HashConcurrency < 0 {
		return errors.New("Password HashConcurrency must be >= 0")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxBytes < c.Password.MinLength {
		return errors.New("Password MaxBytes must be >= MinLength")
	}

	// TOTP
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("TOTP Digits must be between 6 and 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 10 {
		return errors.New("TOTP Skew must be between 0 and 10")
	}

	// Codes
	if c.Codes.TTL <= 0 {
		return errors.New("Codes TTL must be > 0")
	}
	if c.Codes.Digits < 6 || c.Codes.Digits > 10 {
		return errors.New("Codes Digits must be between 6 and 10")
	}
	if c.Codes.MaxAttempts < 0 {
		return errors.New("Codes MaxAttempts must be >= 0")
	}

	// Two-factor
	if c.TwoFactor.SetupTTL <= 0 {
		return errors.New("TwoFactor SetupTTL must be > 0")
	}
	if c.TwoFactor.LoginTokenTTL <= 0 {
		return errors.New("TwoFactor LoginTokenTTL must be > 0")
	}
	if c.TwoFactor.LoginTokenTTL > c.JWT.AccessTTL {
		return errors.New("TwoFactor LoginTokenTTL must be <= JWT AccessTTL")
	}

	// Security
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0 when MaxLoginAttempts is set")
	}

	// Mail
	if c.Mail.Async && c.Mail.BufferSize <= 0 {
		return errors.New("Mail BufferSize must be > 0 when Async is true")
	}
	if c.Mail.SendTimeout < 0 {
		return errors.New("Mail SendTimeout must be >= 0")
	}

	return nil
}
