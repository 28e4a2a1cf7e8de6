package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var deleteIfEqualScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis implements Store over a go-redis UniversalClient.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an existing client. The caller owns the client's lifecycle.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Get returns the value at key, or ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", unavailable(err)
	}
	return v, nil
}

// Set stores value at key. A zero ttl keeps the key without expiry.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Delete removes keys and returns how many existed.
func (r *Redis) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// Exists reports whether key is present.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// DeleteIfEqual deletes key when its value is value. It reports whether the
// key was removed.
func (r *Redis) DeleteIfEqual(ctx context.Context, key, value string) (bool, error) {
	n, err := deleteIfEqualScript.Run(ctx, r.client, []string{key}, value).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

// AddToSet adds members to the set at key and refreshes its ttl.
func (r *Redis) AddToSet(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, args...)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// RemoveFromSet removes members from the set at key.
func (r *Redis) RemoveFromSet(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := r.client.SRem(ctx, key, args...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Members lists the set at key. A missing key yields an empty slice.
func (r *Redis) Members(ctx context.Context, key string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, unavailable(err)
	}
	return ids, nil
}

// Expire resets the ttl of key.
func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Increment adds one to the counter at key, setting ttl on the first hit.
func (r *Redis) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 && ttl > 0 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, unavailable(err)
		}
	}
	return count, nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
