package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/store"
)

var errLoginTokenNotFound = errors.New("two-factor login token not found")

// loginTokenStore stages the temporary token handed out when a login needs
// a second factor. One token per user; a new login overwrites it.
type loginTokenStore struct {
	kv   store.Store
	keys store.Keys
}

func newLoginTokenStore(kv store.Store, keys store.Keys) *loginTokenStore {
	return &loginTokenStore{kv: kv, keys: keys}
}

func (s *loginTokenStore) Save(ctx context.Context, userID, token string, ttl time.Duration) error {
	return s.kv.Set(ctx, s.keys.TwoFactorLogin(userID), token, ttl)
}

// Match compares presented against the staged token in constant time.
func (s *loginTokenStore) Match(ctx context.Context, userID, presented string) error {
	staged, err := s.kv.Get(ctx, s.keys.TwoFactorLogin(userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errLoginTokenNotFound
		}
		return err
	}
	if subtle.ConstantTimeCompare([]byte(staged), []byte(presented)) != 1 {
		return errLoginTokenNotFound
	}
	return nil
}

// Consume deletes the staged token if it is still token. A newer token
// staged by a later login is left in place. Only the caller whose delete
// removed it gets a nil error.
func (s *loginTokenStore) Consume(ctx context.Context, userID, token string) error {
	removed, err := s.kv.DeleteIfEqual(ctx, s.keys.TwoFactorLogin(userID), token)
	if err != nil {
		return err
	}
	if !removed {
		return errLoginTokenNotFound
	}
	return nil
}

// Discard drops any staged token for userID.
func (s *loginTokenStore) Discard(ctx context.Context, userID string) error {
	_, err := s.kv.Delete(ctx, s.keys.TwoFactorLogin(userID))
	return err
}
