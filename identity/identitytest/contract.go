// Package identitytest holds a behavioural test suite every
// identity.Repository implementation must pass.
package identitytest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/identity"
)

// Run exercises repo against the repository contract. newRepo must return an
// empty repository for each call.
func Run(t *testing.T, newRepo func(t *testing.T) identity.Repository) {
	t.Run("CreateAndFind", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, identity.Identity{
			Email:        "  Alice@Example.COM ",
			Name:         "Alice",
			PasswordHash: "hash",
		})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		require.Equal(t, "alice@example.com", created.Email)
		require.Equal(t, identity.DefaultRole, created.Role)
		require.Equal(t, identity.StatusActive, created.Status)
		require.False(t, created.EmailVerified)

		byEmail, err := repo.FindByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		require.Equal(t, created.ID, byEmail.ID)
		require.Equal(t, "hash", byEmail.PasswordHash)

		byID, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, "Alice", byID.Name)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.FindByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, identity.ErrNotFound)
		_, err = repo.FindByID(ctx, "00000000-0000-4000-8000-000000000000")
		require.ErrorIs(t, err, identity.ErrNotFound)
		_, err = repo.FindByID(ctx, "not-a-uuid")
		require.ErrorIs(t, err, identity.ErrNotFound)
		require.ErrorIs(t, repo.UpdateCredential(ctx, "00000000-0000-4000-8000-000000000000", "h"), identity.ErrNotFound)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Create(ctx, identity.Identity{Email: "a@x.com", PasswordHash: "h"})
		require.NoError(t, err)
		_, err = repo.Create(ctx, identity.Identity{Email: "A@X.com", PasswordHash: "h"})
		require.ErrorIs(t, err, identity.ErrDuplicateEmail)
	})

	t.Run("Updates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, identity.Identity{Email: "a@x.com", PasswordHash: "old"})
		require.NoError(t, err)

		require.NoError(t, repo.UpdateCredential(ctx, created.ID, "new"))
		require.NoError(t, repo.MarkEmailVerified(ctx, created.ID))
		require.NoError(t, repo.UpdateStatus(ctx, created.ID, identity.StatusSuspended))
		require.ErrorIs(t, repo.UpdateStatus(ctx, created.ID, identity.Status("BANNED")), identity.ErrInvalidStatus)

		got, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, "new", got.PasswordHash)
		require.True(t, got.EmailVerified)
		require.Equal(t, identity.StatusSuspended, got.Status)
	})

	t.Run("TwoFactorSecretInvariant", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, identity.Identity{Email: "a@x.com", PasswordHash: "h"})
		require.NoError(t, err)

		require.ErrorIs(t, repo.UpdateTwoFactor(ctx, created.ID, true, ""), identity.ErrTwoFactorSecretRequired)

		require.NoError(t, repo.UpdateTwoFactor(ctx, created.ID, true, "JBSWY3DPEHPK3PXP"))
		got, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.True(t, got.TwoFactorEnabled)
		require.Equal(t, "JBSWY3DPEHPK3PXP", got.TwoFactorSecret)

		require.NoError(t, repo.UpdateTwoFactor(ctx, created.ID, false, "JBSWY3DPEHPK3PXP"))
		got, err = repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.False(t, got.TwoFactorEnabled)
		require.Empty(t, got.TwoFactorSecret)
	})
}
