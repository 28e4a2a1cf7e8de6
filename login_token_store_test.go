package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLoginTokenConsumeKeepsNewerToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := newLoginTokenStore(store.NewRedis(rdb), store.Keys{})
	ctx := context.Background()

	if err := s.Save(ctx, "u1", "first", time.Minute); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := s.Match(ctx, "u1", "first"); err != nil {
		t.Fatalf("match first: %v", err)
	}
	// a second login stages a new challenge before the first completes
	if err := s.Save(ctx, "u1", "second", time.Minute); err != nil {
		t.Fatalf("save second: %v", err)
	}

	if err := s.Consume(ctx, "u1", "first"); !errors.Is(err, errLoginTokenNotFound) {
		t.Fatalf("expected errLoginTokenNotFound, got %v", err)
	}
	if err := s.Match(ctx, "u1", "second"); err != nil {
		t.Fatalf("newer token must survive: %v", err)
	}
	if err := s.Consume(ctx, "u1", "second"); err != nil {
		t.Fatalf("consume second: %v", err)
	}
	if err := s.Consume(ctx, "u1", "second"); !errors.Is(err, errLoginTokenNotFound) {
		t.Fatalf("second consume must fail, got %v", err)
	}
}
