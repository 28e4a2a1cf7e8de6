package twofactor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/identity/sqlite"
	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/totp"
)

type fixture struct {
	svc  *Service
	repo identity.Repository
	mr   *miniredis.Miniredis
	totp *totp.Manager
	now  time.Time
	user identity.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	user, err := repo.Create(context.Background(), identity.Identity{Email: "alice@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	m, err := totp.New(totp.DefaultConfig("authcore"))
	require.NoError(t, err)

	f := &fixture{repo: repo, mr: mr, totp: m, now: time.Unix(1_700_000_000, 0), user: user}
	f.svc = NewService(repo, store.NewRedis(rdb), store.Keys{}, m, 0, func() time.Time { return f.now })
	return f
}

func (f *fixture) code(t *testing.T, secret string) string {
	t.Helper()
	c, err := f.totp.Code(secret, f.now)
	require.NoError(t, err)
	return c
}

func TestEnrollmentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	setup, err := f.svc.Begin(ctx, f.user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.True(t, strings.HasPrefix(setup.URI, "otpauth://totp/"))
	require.Equal(t, DefaultSetupTTL, f.mr.TTL("2fa:setup:"+f.user.ID))

	ident, _ := f.repo.FindByID(ctx, f.user.ID)
	require.False(t, ident.TwoFactorEnabled, "begin must not touch the identity")

	require.ErrorIs(t, f.svc.Confirm(ctx, f.user.ID, "000000"), ErrInvalidCode)
	require.NoError(t, f.svc.Confirm(ctx, f.user.ID, f.code(t, setup.Secret)))
	require.False(t, f.mr.Exists("2fa:setup:"+f.user.ID))

	ident, _ = f.repo.FindByID(ctx, f.user.ID)
	require.True(t, ident.TwoFactorEnabled)
	require.Equal(t, setup.Secret, ident.TwoFactorSecret)

	_, err = f.svc.Begin(ctx, f.user.ID)
	require.ErrorIs(t, err, ErrAlreadyEnabled)

	require.ErrorIs(t, f.svc.Disable(ctx, f.user.ID, "000000"), ErrInvalidCode)
	require.NoError(t, f.svc.Disable(ctx, f.user.ID, f.code(t, setup.Secret)))

	ident, _ = f.repo.FindByID(ctx, f.user.ID)
	require.False(t, ident.TwoFactorEnabled)
	require.Empty(t, ident.TwoFactorSecret)

	require.ErrorIs(t, f.svc.Disable(ctx, f.user.ID, f.code(t, setup.Secret)), ErrNotEnabled)
}

func TestConfirmWithoutSetup(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.svc.Confirm(context.Background(), f.user.ID, "123456"), ErrSetupExpired)
}

func TestSetupExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	setup, err := f.svc.Begin(ctx, f.user.ID)
	require.NoError(t, err)
	f.mr.FastForward(DefaultSetupTTL + time.Second)

	require.ErrorIs(t, f.svc.Confirm(ctx, f.user.ID, f.code(t, setup.Secret)), ErrSetupExpired)
}

func TestRestartOverwritesStagedSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Begin(ctx, f.user.ID)
	require.NoError(t, err)
	second, err := f.svc.Begin(ctx, f.user.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	require.ErrorIs(t, f.svc.Confirm(ctx, f.user.ID, f.code(t, first.Secret)), ErrInvalidCode)
	require.NoError(t, f.svc.Confirm(ctx, f.user.ID, f.code(t, second.Secret)))
}

func TestConfirmToleratesClockSkew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	setup, err := f.svc.Begin(ctx, f.user.ID)
	require.NoError(t, err)
	old, err := f.totp.Code(setup.Secret, f.now.Add(-60*time.Second))
	require.NoError(t, err)

	require.NoError(t, f.svc.Confirm(ctx, f.user.ID, old))
}

func TestVerifyIgnoresMalformedSecret(t *testing.T) {
	f := newFixture(t)
	require.False(t, f.svc.Verify("!!", "123456"))
}
