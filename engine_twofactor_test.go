package authcore

import (
	"context"
	"strings"
	"testing"
)

func TestGenerateTwoFactorStagesSecret(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	userID := te.registerVerified(t, "cal@example.com")

	setup, err := te.GenerateTwoFactor(ctx, userID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if setup.Secret == "" || !strings.HasPrefix(setup.URI, "otpauth://totp/") {
		t.Fatalf("unexpected setup %+v", setup)
	}
	if !te.mr.Exists("2fa:setup:" + userID) {
		t.Fatal("expected staged secret")
	}
	if te.identity(t, userID).TwoFactorEnabled {
		t.Fatal("generate must not enable two-factor")
	}

	expectErr(t, te.EnableTwoFactor(ctx, userID, "12345"), ErrInvalidTwoFactorCode)
	if err := te.EnableTwoFactor(ctx, userID, te.code(t, setup.Secret)); err != nil {
		t.Fatalf("enable failed: %v", err)
	}

	ident := te.identity(t, userID)
	if !ident.TwoFactorEnabled || ident.TwoFactorSecret != setup.Secret {
		t.Fatalf("expected secret to be persisted, got %+v", ident)
	}
	if te.mr.Exists("2fa:setup:" + userID) {
		t.Fatal("staged secret must be removed on confirm")
	}
}

func TestTwoFactorAlreadyEnabled(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	userID := te.registerVerified(t, "dee@example.com")
	te.enableTwoFactor(t, userID)

	_, err := te.GenerateTwoFactor(ctx, userID)
	expectErr(t, err, ErrAlreadyEnabled)
}

func TestTwoFactorSetupExpires(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	userID := te.registerVerified(t, "eli@example.com")

	setup, err := te.GenerateTwoFactor(ctx, userID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	te.mr.FastForward(te.config.TwoFactor.SetupTTL + 1)

	expectErr(t, te.EnableTwoFactor(ctx, userID, te.code(t, setup.Secret)), ErrSetupExpired)
	expectErr(t, te.EnableTwoFactor(ctx, "unknown", "123456"), ErrSetupExpired)
}

func TestDisableTwoFactorClearsSecret(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	userID := te.registerVerified(t, "fay@example.com")

	expectErr(t, te.DisableTwoFactor(ctx, userID, "123456"), ErrNotEnabled)

	secret := te.enableTwoFactor(t, userID)
	expectErr(t, te.DisableTwoFactor(ctx, userID, "12345"), ErrInvalidTwoFactorCode)

	if err := te.DisableTwoFactor(ctx, userID, te.code(t, secret)); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	ident := te.identity(t, userID)
	if ident.TwoFactorEnabled || ident.TwoFactorSecret != "" {
		t.Fatalf("expected two-factor cleared, got %+v", ident)
	}

	te.login(t, "fay@example.com")
}

func TestGenerateTwoFactorRequiresActiveAccount(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	userID := te.registerVerified(t, "gus@example.com")

	_, err := te.GenerateTwoFactor(ctx, "missing")
	expectErr(t, err, ErrUserNotFound)

	if err := te.DisableAccount(ctx, userID); err != nil {
		t.Fatalf("disable account failed: %v", err)
	}
	_, err = te.GenerateTwoFactor(ctx, userID)
	expectErr(t, err, ErrAccountNotActive)
}
