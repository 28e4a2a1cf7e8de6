package authcore

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/identity/sqlite"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/totp"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testPassword = "Secret123"
	fixedCode    = "000000"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	email   string
	purpose mail.Purpose
	code    string
}

type captureSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (s *captureSender) SendCode(_ context.Context, email string, purpose mail.Purpose, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{email: email, purpose: purpose, code: code})
	return nil
}

func (s *captureSender) count(purpose mail.Purpose) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.sent {
		if m.purpose == purpose {
			n++
		}
	}
	return n
}

type testEngine struct {
	*Engine
	mr    *miniredis.Miniredis
	repo  *sqlite.Store
	clock *testClock
	mail  *captureSender
	totp  *totp.Manager
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Access.PrivateKey = bytes.Repeat([]byte("a"), 32)
	cfg.JWT.Refresh.PrivateKey = bytes.Repeat([]byte("r"), 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	cfg.Mail.Async = false
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) *testEngine {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	clock := newTestClock()
	sender := &captureSender{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityRepository(repo).
		WithMailSender(sender).
		WithClock(clock.Now).
		WithCodeGenerator(func(int) (string, error) { return fixedCode, nil }).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	tm, err := totp.New(totp.Config{
		Issuer:    cfg.TOTP.Issuer,
		Digits:    cfg.TOTP.Digits,
		Period:    cfg.TOTP.Period,
		Algorithm: cfg.TOTP.Algorithm,
		Skew:      cfg.TOTP.Skew,
	})
	if err != nil {
		t.Fatalf("totp: %v", err)
	}

	return &testEngine{Engine: engine, mr: mr, repo: repo, clock: clock, mail: sender, totp: tm}
}

// registerVerified registers email and confirms it, returning the user id.
func (te *testEngine) registerVerified(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()

	res, err := te.Register(ctx, RegisterRequest{Email: email, Password: testPassword, Name: "Test"})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	if err := te.VerifyEmail(ctx, email, fixedCode); err != nil {
		t.Fatalf("verify email %s: %v", email, err)
	}
	return res.UserID
}

func (te *testEngine) login(t *testing.T, email string) TokenPair {
	t.Helper()
	out, err := te.Login(context.Background(), LoginRequest{Email: email, Password: testPassword})
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	if out.Kind != OutcomeAuthenticated {
		t.Fatalf("expected authenticated outcome, got %s", out.Kind)
	}
	return out.Tokens
}

// enableTwoFactor enrolls userID and returns the confirmed secret.
func (te *testEngine) enableTwoFactor(t *testing.T, userID string) string {
	t.Helper()
	ctx := context.Background()

	setup, err := te.GenerateTwoFactor(ctx, userID)
	if err != nil {
		t.Fatalf("generate two-factor: %v", err)
	}
	if err := te.EnableTwoFactor(ctx, userID, te.code(t, setup.Secret)); err != nil {
		t.Fatalf("enable two-factor: %v", err)
	}
	return setup.Secret
}

func (te *testEngine) code(t *testing.T, secret string) string {
	t.Helper()
	c, err := te.totp.Code(secret, te.clock.Now())
	if err != nil {
		t.Fatalf("totp code: %v", err)
	}
	return c
}

func (te *testEngine) identity(t *testing.T, userID string) identity.Identity {
	t.Helper()
	ident, err := te.repo.FindByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("find identity: %v", err)
	}
	return ident
}

func (te *testEngine) keysWithPrefix(prefix string) []string {
	var out []string
	for _, k := range te.mr.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
