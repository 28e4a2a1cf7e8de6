package authcore

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authcore/password"
)

func TestRegisterVerifyLoginFlow(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	res, err := te.Register(ctx, RegisterRequest{Email: "flow@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err = te.Login(ctx, LoginRequest{Email: "flow@example.com", Password: testPassword})
	expectErr(t, err, ErrEmailNotVerified)

	if err := te.VerifyEmail(ctx, "flow@example.com", fixedCode); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	pair := te.login(t, "flow@example.com")
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	claims, err := te.ValidateAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UserID != res.UserID || claims.Email != "flow@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.SessionID != pair.SessionID {
		t.Fatalf("access jti %q does not match session %q", claims.SessionID, pair.SessionID)
	}

	if keys := te.keysWithPrefix("refresh:" + res.UserID + ":"); len(keys) != 1 {
		t.Fatalf("expected one session record, got %v", keys)
	}
	members, err := te.mr.Members("session:" + res.UserID)
	if err != nil || len(members) != 1 || members[0] != pair.SessionID {
		t.Fatalf("expected index with %q, got %v (%v)", pair.SessionID, members, err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.registerVerified(t, "gina@example.com")

	_, wrongPw := te.Login(ctx, LoginRequest{Email: "gina@example.com", Password: "Wrong1234"})
	_, unknown := te.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: testPassword})

	expectErr(t, wrongPw, ErrInvalidCredentials)
	expectErr(t, unknown, ErrInvalidCredentials)
	if wrongPw.Error() != unknown.Error() {
		t.Fatalf("errors differ: %q vs %q", wrongPw, unknown)
	}
}

func TestLoginRateLimitedAfterFailures(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Security.MaxLoginAttempts = 3 })
	ctx := context.Background()
	te.registerVerified(t, "hank@example.com")

	for i := 0; i < 3; i++ {
		_, err := te.Login(ctx, LoginRequest{Email: "hank@example.com", Password: "Wrong1234"})
		expectErr(t, err, ErrInvalidCredentials)
	}

	_, err := te.Login(ctx, LoginRequest{Email: "hank@example.com", Password: testPassword})
	expectErr(t, err, ErrLoginRateLimited)

	te.mr.FastForward(te.config.Security.LoginCooldownDuration + 1)
	te.login(t, "hank@example.com")
}

func TestLoginSuccessResetsFailureCounter(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.registerVerified(t, "ivy@example.com")

	_, _ = te.Login(ctx, LoginRequest{Email: "ivy@example.com", Password: "Wrong1234"})
	if !te.mr.Exists("ratelimit:login:ivy@example.com") {
		t.Fatal("expected failure counter")
	}
	te.login(t, "ivy@example.com")
	if te.mr.Exists("ratelimit:login:ivy@example.com") {
		t.Fatal("expected failure counter to be cleared")
	}
}

func TestLoginTwoFactorFlow(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	userID := te.registerVerified(t, "jack@example.com")
	secret := te.enableTwoFactor(t, userID)

	out, err := te.Login(ctx, LoginRequest{Email: "jack@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if out.Kind != OutcomeTwoFactorRequired || out.TemporaryToken == "" || out.UserID != userID {
		t.Fatalf("expected two-factor outcome, got %+v", out)
	}
	if !errors.Is(out.Err(), ErrTwoFactorRequired) {
		t.Fatalf("expected ErrTwoFactorRequired from outcome, got %v", out.Err())
	}
	if out.Tokens.RefreshToken != "" {
		t.Fatal("no session may exist before the second factor")
	}
	if keys := te.keysWithPrefix("refresh:"); len(keys) != 0 {
		t.Fatalf("unexpected sessions %v", keys)
	}

	_, err = te.ValidateAccess(ctx, out.TemporaryToken)
	expectErr(t, err, ErrInvalidToken)

	_, err = te.VerifyTwoFactorLogin(ctx, userID, "12345", out.TemporaryToken)
	expectErr(t, err, ErrInvalidTwoFactorCode)

	pair, err := te.VerifyTwoFactorLogin(ctx, userID, te.code(t, secret), out.TemporaryToken)
	if err != nil {
		t.Fatalf("verify two-factor login failed: %v", err)
	}
	if _, err := te.ValidateAccess(ctx, pair.AccessToken); err != nil {
		t.Fatalf("validate after two-factor failed: %v", err)
	}

	_, err = te.VerifyTwoFactorLogin(ctx, userID, te.code(t, secret), out.TemporaryToken)
	expectErr(t, err, ErrInvalidCredentials)
}

func TestLoginTwoFactorWithInlineCode(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	userID := te.registerVerified(t, "kim@example.com")
	secret := te.enableTwoFactor(t, userID)

	_, err := te.Login(ctx, LoginRequest{Email: "kim@example.com", Password: testPassword, Code: "12345"})
	expectErr(t, err, ErrInvalidTwoFactorCode)

	out, err := te.Login(ctx, LoginRequest{Email: "kim@example.com", Password: testPassword, Code: te.code(t, secret)})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if out.Kind != OutcomeAuthenticated || out.Tokens.AccessToken == "" {
		t.Fatalf("expected authenticated outcome, got %+v", out)
	}
}

func TestVerifyTwoFactorLoginRejectsForeignUser(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	alice := te.registerVerified(t, "la@example.com")
	bob := te.registerVerified(t, "lb@example.com")
	secret := te.enableTwoFactor(t, alice)

	out, err := te.Login(ctx, LoginRequest{Email: "la@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	_, err = te.VerifyTwoFactorLogin(ctx, bob, te.code(t, secret), out.TemporaryToken)
	expectErr(t, err, ErrInvalidCredentials)
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	userID := te.registerVerified(t, "mia@example.com")

	bc, err := password.NewBcrypt(4)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	legacy, err := bc.Hash(testPassword)
	if err != nil {
		t.Fatalf("bcrypt hash: %v", err)
	}
	if err := te.repo.UpdateCredential(ctx, userID, legacy); err != nil {
		t.Fatalf("update credential: %v", err)
	}

	te.login(t, "mia@example.com")

	if got := te.identity(t, userID).PasswordHash; got == legacy {
		t.Fatal("expected hash to be upgraded")
	}
	if te.MetricsSnapshot().Counters[MetricPasswordRehashed] != 1 {
		t.Fatal("expected rehash metric")
	}
	te.login(t, "mia@example.com")
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	userID := te.registerVerified(t, "ned@example.com")

	if err := te.SuspendAccount(ctx, userID); err != nil {
		t.Fatalf("suspend failed: %v", err)
	}
	_, err := te.Login(ctx, LoginRequest{Email: "ned@example.com", Password: testPassword})
	expectErr(t, err, ErrAccountNotActive)
}
