package authcore

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/codes"
	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/tokens"
	"github.com/MrEthical07/authcore/totp"
	"github.com/MrEthical07/authcore/twofactor"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/MrEthical07/authcore"

// Builder collects configuration and dependencies for an Engine. A Builder
// produces at most one Engine.
type Builder struct {
	config Config
	store  store.Store
	repo   identity.Repository
	sender mail.Sender

	tracerProvider trace.TracerProvider
	now            func() time.Time
	codeGenerator  func(digits int) (string, error)

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis uses client as the ephemeral store. Standalone, cluster and
// sentinel clients are all accepted.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	if client == nil {
		b.store = nil
		return b
	}
	b.store = store.NewRedis(client)
	return b
}

// WithStore uses an arbitrary store.Store implementation as the ephemeral store.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithIdentityRepository sets the durable identity repository. Required.
func (b *Builder) WithIdentityRepository(repo identity.Repository) *Builder {
	b.repo = repo
	return b
}

// WithMailSender sets the code delivery backend. Defaults to a mail.LogSender.
func (b *Builder) WithMailSender(sender mail.Sender) *Builder {
	b.sender = sender
	return b
}

// WithTracerProvider enables OpenTelemetry spans for Engine operations.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithClock overrides time.Now for token issuance, validation and staging.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithCodeGenerator replaces the random one-time code generator.
func (b *Builder) WithCodeGenerator(fn func(digits int) (string, error)) *Builder {
	b.codeGenerator = fn
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the latency histograms. Requires metrics.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.store == nil {
		return nil, errors.New("ephemeral store required")
	}
	if b.repo == nil {
		return nil, errors.New("identity repository required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	keys := store.Keys{Prefix: cfg.Store.KeyPrefix}

	// -------- TOKENS --------
	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.Session.RefreshTTL,
		Access:     cfg.JWT.Access,
		Refresh:    cfg.JWT.Refresh,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		Leeway:     cfg.JWT.Leeway,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}
	sessions := session.NewStore(b.store, keys)
	issuer := tokens.NewIssuer(jwtManager, sessions, now)

	// -------- PASSWORDS --------
	hasher, err := newPasswordHasher(cfg.Password)
	if err != nil {
		return nil, err
	}
	pool := password.NewPool(hasher, cfg.Password.HashConcurrency)

	// -------- TWO-FACTOR --------
	totpManager, err := totp.New(totp.Config{
		Issuer:    cfg.TOTP.Issuer,
		Digits:    cfg.TOTP.Digits,
		Period:    cfg.TOTP.Period,
		Algorithm: cfg.TOTP.Algorithm,
		Skew:      cfg.TOTP.Skew,
	})
	if err != nil {
		return nil, err
	}

	var codeOpts []codes.Option
	if b.codeGenerator != nil {
		codeOpts = append(codeOpts, codes.WithGenerator(b.codeGenerator))
	}

	sender := b.sender
	if sender == nil {
		sender = mail.LogSender{Logger: log.Default()}
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}

	metrics := NewMetrics(cfg.Metrics)

	e := &Engine{
		config:      cfg,
		now:         now,
		repo:        b.repo,
		tokens:      issuer,
		passwords:   pool,
		policy:      passwordPolicy(cfg.Password),
		credentials: credential.NewVerifier(b.repo, pool),
		codes:       codes.NewService(b.store, keys, codes.Config{TTL: cfg.Codes.TTL, Digits: cfg.Codes.Digits, MaxAttempts: cfg.Codes.MaxAttempts}, codeOpts...),
		twoFactor:   twofactor.NewService(b.repo, b.store, keys, totpManager, cfg.TwoFactor.SetupTTL, now),
		loginTokens: newLoginTokenStore(b.store, keys),
		limiter: rate.New(b.store, keys, rate.Config{
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		}),
		store:   b.store,
		sender:  sender,
		metrics: metrics,
		tracer:  tp.Tracer(tracerName),
	}
	if cfg.Mail.Async {
		e.mail = newMailDispatcher(cfg.Mail, sender, metrics)
	}

	b.built = true
	return e, nil
}

func newPasswordHasher(cfg PasswordConfig) (*password.Multi, error) {
	argon, err := password.NewArgon2(password.Config{
		Memory:      cfg.Memory,
		Time:        cfg.Time,
		Parallelism: cfg.Parallelism,
		SaltLength:  cfg.SaltLength,
		KeyLength:   cfg.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}
	bc, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}

	if strings.EqualFold(cfg.Algorithm, "bcrypt") {
		return password.NewMulti(passwordPolicy(cfg), bc, argon), nil
	}
	return password.NewMulti(passwordPolicy(cfg), argon, bc), nil
}

func passwordPolicy(cfg PasswordConfig) password.Policy {
	return password.Policy{
		MinLength:     cfg.MinLength,
		MaxBytes:      cfg.MaxBytes,
		RequireLetter: cfg.RequireLetter,
		RequireDigit:  cfg.RequireDigit,
	}
}
