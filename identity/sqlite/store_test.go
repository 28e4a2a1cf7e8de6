package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/identity/identitytest"
)

func TestStoreContract(t *testing.T) {
	identitytest.Run(t, func(t *testing.T) identity.Repository {
		s, err := Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpenIsIdempotentOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}
