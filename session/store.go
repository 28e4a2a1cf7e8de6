package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/store"
)

// ErrSessionNotFound is returned when a session record is absent or expired.
var ErrSessionNotFound = errors.New("session not found")

const minBlacklistTTL = time.Second

// Store reads and writes session state through a store.Store.
type Store struct {
	kv   store.Store
	keys store.Keys
}

// NewStore wires a session Store over kv using the given key layout.
func NewStore(kv store.Store, keys store.Keys) *Store {
	return &Store{kv: kv, keys: keys}
}

// Save writes the session record and adds the id to the user's index,
// refreshing the index TTL to ttl.
//
//	Performance: 1 SET + 1 MULTI(SADD, EXPIRE).
func (s *Store) Save(ctx context.Context, sess Session, ttl time.Duration) error {
	value := strconv.FormatInt(sess.IssuedAt.Unix(), 10)
	if err := s.kv.Set(ctx, s.keys.Session(sess.UserID, sess.SessionID), value, ttl); err != nil {
		return err
	}
	return s.kv.AddToSet(ctx, s.keys.SessionIndex(sess.UserID), ttl, sess.SessionID)
}

// Get returns the session record, or ErrSessionNotFound.
func (s *Store) Get(ctx context.Context, userID, sessionID string) (Session, error) {
	raw, err := s.kv.Get(ctx, s.keys.Session(userID, sessionID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	sess := Session{UserID: userID, SessionID: sessionID}
	if secs, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
		sess.IssuedAt = time.Unix(secs, 0)
	}
	return sess, nil
}

// Exists reports whether the session record is present.
func (s *Store) Exists(ctx context.Context, userID, sessionID string) (bool, error) {
	return s.kv.Exists(ctx, s.keys.Session(userID, sessionID))
}

// Consume deletes the session record and reports whether this call removed
// it. Under concurrency exactly one caller observes true.
func (s *Store) Consume(ctx context.Context, userID, sessionID string) (bool, error) {
	n, err := s.kv.Delete(ctx, s.keys.Session(userID, sessionID))
	if err != nil {
		return false, err
	}
	if err := s.kv.RemoveFromSet(ctx, s.keys.SessionIndex(userID), sessionID); err != nil {
		return n == 1, err
	}
	return n == 1, nil
}

// Delete removes the session record and index entry. Deleting an absent
// session is not an error.
func (s *Store) Delete(ctx context.Context, userID, sessionID string) error {
	_, err := s.Consume(ctx, userID, sessionID)
	return err
}

// ActiveSessionIDs returns index members whose record still exists and
// prunes the rest from the index.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.kv.Members(ctx, s.keys.SessionIndex(userID))
	if err != nil {
		return nil, err
	}

	live := make([]string, 0, len(ids))
	var stale []string
	for _, id := range ids {
		ok, err := s.kv.Exists(ctx, s.keys.Session(userID, id))
		if err != nil {
			return nil, err
		}
		if ok {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := s.kv.RemoveFromSet(ctx, s.keys.SessionIndex(userID), stale...); err != nil {
			return nil, err
		}
	}
	return live, nil
}

// DeleteAllForUser blacklists and deletes every indexed session, then drops
// the index. It returns the ids that were indexed. blacklistTTL bounds how
// long revoked ids stay blacklisted.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string, blacklistTTL time.Duration) ([]string, error) {
	indexKey := s.keys.SessionIndex(userID)
	ids, err := s.kv.Members(ctx, indexKey)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		if err := s.Blacklist(ctx, id, blacklistTTL); err != nil {
			return nil, err
		}
		keys = append(keys, s.keys.Session(userID, id))
	}
	keys = append(keys, indexKey)

	if _, err := s.kv.Delete(ctx, keys...); err != nil {
		return nil, err
	}
	return ids, nil
}

// Blacklist marks sessionID revoked for ttl, clamped to at least one second.
func (s *Store) Blacklist(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl < minBlacklistTTL {
		ttl = minBlacklistTTL
	}
	return s.kv.Set(ctx, s.keys.Blacklist(sessionID), "1", ttl)
}

// IsBlacklisted reports whether sessionID has a live blacklist entry.
func (s *Store) IsBlacklisted(ctx context.Context, sessionID string) (bool, error) {
	return s.kv.Exists(ctx, s.keys.Blacklist(sessionID))
}

// MarkPasswordChanged records at (whole seconds) as the user's latest password change.
func (s *Store) MarkPasswordChanged(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	return s.kv.Set(ctx, s.keys.PasswordChanged(userID), strconv.FormatInt(at.Unix(), 10), ttl)
}

// PasswordChangedAt returns the marker, with ok=false when none is set.
func (s *Store) PasswordChangedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	raw, err := s.kv.Get(ctx, s.keys.PasswordChanged(userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(secs, 0), true, nil
}
