package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key does not exist or has expired.
	ErrNotFound = errors.New("store: key not found")
	// ErrUnavailable wraps every backend failure. It is fatal for the in-flight request.
	ErrUnavailable = errors.New("store: backend unavailable")
)

// Store is the ephemeral key/value contract. A ttl of zero means no expiry.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes keys and returns the number that existed.
	Delete(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	// DeleteIfEqual deletes key only while it still holds value, atomically.
	DeleteIfEqual(ctx context.Context, key, value string) (bool, error)
	// AddToSet adds members and resets the set TTL when ttl > 0.
	AddToSet(ctx context.Context, key string, ttl time.Duration, members ...string) error
	RemoveFromSet(ctx context.Context, key string, members ...string) error
	Members(ctx context.Context, key string) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Increment bumps a fixed-window counter; the TTL is applied on the first hit only.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
}
