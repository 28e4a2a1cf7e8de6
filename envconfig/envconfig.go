// Package envconfig loads authcore settings from the environment and an
// optional .env file using Viper.
package envconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/spf13/viper"
)

// Settings holds infrastructure addresses and the raw authcore tunables.
type Settings struct {
	// RedisAddr is the ephemeral store address (host:port).
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// DatabaseURL is the Postgres DSN for the identity repository.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SQLitePath selects the SQLite identity repository when DatabaseURL is empty.
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	// MailRelayURL enables mail.HTTPSender; empty means codes are only logged.
	MailRelayURL   string `mapstructure:"MAIL_RELAY_URL"`
	MailRelayToken string `mapstructure:"MAIL_RELAY_TOKEN"`
	MailFrom       string `mapstructure:"MAIL_FROM"`
	MailAsync      bool   `mapstructure:"MAIL_ASYNC"`

	// JWTSigningMethod is "hs256" or "ed25519" for both keys.
	JWTSigningMethod string `mapstructure:"JWT_SIGNING_METHOD"`
	// JWTAccessKey and JWTRefreshKey are an HMAC secret, a PEM key, or a path to a PEM file.
	JWTAccessKey        string `mapstructure:"JWT_ACCESS_KEY"`
	JWTAccessPublicKey  string `mapstructure:"JWT_ACCESS_PUBLIC_KEY"`
	JWTRefreshKey       string `mapstructure:"JWT_REFRESH_KEY"`
	JWTRefreshPublicKey string `mapstructure:"JWT_REFRESH_PUBLIC_KEY"`
	JWTIssuer           string `mapstructure:"JWT_ISSUER"`
	JWTAudience         string `mapstructure:"JWT_AUDIENCE"`
	JWTAccessTTL        string `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL       string `mapstructure:"JWT_REFRESH_TTL"`

	PasswordAlgorithm string `mapstructure:"PASSWORD_ALGORITHM"`
	BcryptCost        int    `mapstructure:"BCRYPT_COST"`

	TOTPIssuer string `mapstructure:"TOTP_ISSUER"`
	TOTPSkew   int    `mapstructure:"TOTP_SKEW"`

	CodeTTL         string `mapstructure:"CODE_TTL"`
	CodeMaxAttempts int    `mapstructure:"CODE_MAX_ATTEMPTS"`

	MaxLoginAttempts int    `mapstructure:"MAX_LOGIN_ATTEMPTS"`
	LoginCooldown    string `mapstructure:"LOGIN_COOLDOWN"`
	EnableIPThrottle bool   `mapstructure:"ENABLE_IP_THROTTLE"`

	KeyPrefix      string `mapstructure:"KEY_PREFIX"`
	MetricsEnabled bool   `mapstructure:"METRICS_ENABLED"`
}

// Load reads .env from the working directory (if present) and the environment.
func Load() (*Settings, error) {
	return LoadFile(".env")
}

// LoadFile reads the dotenv file at path (missing files are ignored), then
// the environment. Env vars override the file.
func LoadFile(path string) (*Settings, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		_ = v.ReadInConfig() // ignore a missing file
	}

	v.AutomaticEnv()

	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "")
	v.SetDefault("MAIL_RELAY_URL", "")
	v.SetDefault("MAIL_RELAY_TOKEN", "")
	v.SetDefault("MAIL_FROM", "")
	v.SetDefault("MAIL_ASYNC", true)
	v.SetDefault("JWT_SIGNING_METHOD", string(jwt.MethodHS256))
	v.SetDefault("JWT_ACCESS_KEY", "")
	v.SetDefault("JWT_ACCESS_PUBLIC_KEY", "")
	v.SetDefault("JWT_REFRESH_KEY", "")
	v.SetDefault("JWT_REFRESH_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "authcore")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h")
	v.SetDefault("PASSWORD_ALGORITHM", "argon2id")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("TOTP_ISSUER", "authcore")
	v.SetDefault("TOTP_SKEW", 2)
	v.SetDefault("CODE_TTL", "15m")
	v.SetDefault("CODE_MAX_ATTEMPTS", 5)
	v.SetDefault("MAX_LOGIN_ATTEMPTS", 5)
	v.SetDefault("LOGIN_COOLDOWN", "15m")
	v.SetDefault("ENABLE_IP_THROTTLE", false)
	v.SetDefault("KEY_PREFIX", "")
	v.SetDefault("METRICS_ENABLED", false)

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}

	if strings.TrimSpace(s.RedisAddr) == "" {
		return nil, errors.New("envconfig: REDIS_ADDR must be set")
	}
	if s.DatabaseURL != "" && s.SQLitePath != "" {
		return nil, errors.New("envconfig: set only one of DATABASE_URL and SQLITE_PATH")
	}
	return &s, nil
}

// Config builds an authcore.Config from DefaultConfig and the loaded
// settings. The result is validated.
func (s *Settings) Config() (authcore.Config, error) {
	cfg := authcore.DefaultConfig()

	method := jwt.SigningMethod(strings.ToLower(strings.TrimSpace(s.JWTSigningMethod)))
	access, err := keyConfig(method, s.JWTAccessKey, s.JWTAccessPublicKey)
	if err != nil {
		return authcore.Config{}, fmt.Errorf("envconfig: JWT_ACCESS_KEY: %w", err)
	}
	refresh, err := keyConfig(method, s.JWTRefreshKey, s.JWTRefreshPublicKey)
	if err != nil {
		return authcore.Config{}, fmt.Errorf("envconfig: JWT_REFRESH_KEY: %w", err)
	}
	cfg.JWT.Access = access
	cfg.JWT.Refresh = refresh
	cfg.JWT.Issuer = s.JWTIssuer
	cfg.JWT.Audience = s.JWTAudience

	if cfg.JWT.AccessTTL, err = duration("JWT_ACCESS_TTL", s.JWTAccessTTL); err != nil {
		return authcore.Config{}, err
	}
	if cfg.Session.RefreshTTL, err = duration("JWT_REFRESH_TTL", s.JWTRefreshTTL); err != nil {
		return authcore.Config{}, err
	}
	if cfg.Codes.TTL, err = duration("CODE_TTL", s.CodeTTL); err != nil {
		return authcore.Config{}, err
	}
	if cfg.Security.LoginCooldownDuration, err = duration("LOGIN_COOLDOWN", s.LoginCooldown); err != nil {
		return authcore.Config{}, err
	}

	cfg.Password.Algorithm = s.PasswordAlgorithm
	cfg.Password.BcryptCost = s.BcryptCost
	cfg.TOTP.Issuer = s.TOTPIssuer
	cfg.TOTP.Skew = s.TOTPSkew
	cfg.Codes.MaxAttempts = s.CodeMaxAttempts
	cfg.Security.MaxLoginAttempts = s.MaxLoginAttempts
	cfg.Security.EnableIPThrottle = s.EnableIPThrottle
	cfg.Mail.Async = s.MailAsync
	cfg.Metrics.Enabled = s.MetricsEnabled
	cfg.Store.KeyPrefix = s.KeyPrefix

	if err := cfg.Validate(); err != nil {
		return authcore.Config{}, fmt.Errorf("envconfig: %w", err)
	}
	return cfg, nil
}

func keyConfig(method jwt.SigningMethod, private, public string) (jwt.KeyConfig, error) {
	switch method {
	case jwt.MethodHS256, jwt.MethodEd25519:
	default:
		return jwt.KeyConfig{}, fmt.Errorf("unsupported signing method %q", method)
	}
	priv, err := keyBytes(private)
	if err != nil {
		return jwt.KeyConfig{}, err
	}
	pub, err := keyBytes(public)
	if err != nil {
		return jwt.KeyConfig{}, err
	}
	return jwt.KeyConfig{SigningMethod: method, PrivateKey: priv, PublicKey: pub}, nil
}

// keyBytes returns v itself, or the contents of the file it names.
func keyBytes(v string) ([]byte, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if strings.HasPrefix(v, "-----BEGIN") {
		return []byte(v), nil
	}
	if info, err := os.Stat(v); err == nil && !info.IsDir() {
		return os.ReadFile(v)
	}
	return []byte(v), nil
}

func duration(name, v string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("envconfig: %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("envconfig: %s must be > 0", name)
	}
	return d, nil
}
