package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/store"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewStore(store.NewRedis(rdb), store.Keys{}), mr
}

func testSession(sid string) Session {
	return Session{UserID: "u-1", SessionID: sid, IssuedAt: time.Unix(1_700_000_000, 0)}
}

func TestSaveWritesRecordAndIndex(t *testing.T) {
	s, mr := newSessionStoreTest(t)
	ctx := context.Background()

	if err := s.Save(ctx, testSession("sid-1"), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	if v, _ := mr.Get("refresh:u-1:sid-1"); v != "1700000000" {
		t.Fatalf("record value = %q", v)
	}
	if ttl := mr.TTL("session:u-1"); ttl != time.Hour {
		t.Fatalf("index ttl = %v", ttl)
	}

	got, err := s.Get(ctx, "u-1", "sid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IssuedAt.Equal(time.Unix(1_700_000_000, 0)) {
		t.Fatalf("issued at = %v", got.IssuedAt)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, mr := newSessionStoreTest(t)
	ctx := context.Background()

	_ = s.Save(ctx, testSession("sid-1"), time.Hour)
	if err := s.Delete(ctx, "u-1", "sid-1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.Delete(ctx, "u-1", "sid-1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if mr.Exists("refresh:u-1:sid-1") {
		t.Fatal("record still present")
	}
	if _, err := s.Get(ctx, "u-1", "sid-1"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestConsumeHasSingleWinner(t *testing.T) {
	s, _ := newSessionStoreTest(t)
	ctx := context.Background()
	_ = s.Save(ctx, testSession("sid-1"), time.Hour)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Consume(ctx, "u-1", "sid-1")
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("winners = %d, want 1", wins.Load())
	}
}

func TestActiveSessionIDsPrunesExpired(t *testing.T) {
	s, mr := newSessionStoreTest(t)
	ctx := context.Background()

	_ = s.Save(ctx, testSession("sid-1"), time.Hour)
	_ = s.Save(ctx, testSession("sid-2"), time.Hour)
	mr.Del("refresh:u-1:sid-1")

	ids, err := s.ActiveSessionIDs(ctx, "u-1")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(ids) != 1 || ids[0] != "sid-2" {
		t.Fatalf("active ids = %v", ids)
	}
	members, _ := mr.Members("session:u-1")
	if len(members) != 1 {
		t.Fatalf("index not pruned: %v", members)
	}
}

func TestDeleteAllForUserBlacklistsEverySession(t *testing.T) {
	s, mr := newSessionStoreTest(t)
	ctx := context.Background()

	for _, sid := range []string{"a", "b", "c"} {
		_ = s.Save(ctx, testSession(sid), time.Hour)
	}
	ids, err := s.DeleteAllForUser(ctx, "u-1", time.Hour)
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("revoked ids = %v", ids)
	}
	for _, sid := range ids {
		if mr.Exists("refresh:u-1:" + sid) {
			t.Fatalf("record %s still present", sid)
		}
		if ok, _ := s.IsBlacklisted(ctx, sid); !ok {
			t.Fatalf("session %s not blacklisted", sid)
		}
	}
	if mr.Exists("session:u-1") {
		t.Fatal("index still present")
	}

	again, err := s.DeleteAllForUser(ctx, "u-1", time.Hour)
	if err != nil || len(again) != 0 {
		t.Fatalf("second delete all = %v, %v", again, err)
	}
}

func TestBlacklistMinimumTTL(t *testing.T) {
	s, mr := newSessionStoreTest(t)
	ctx := context.Background()

	if err := s.Blacklist(ctx, "sid-1", 0); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if ttl := mr.TTL("blacklist:sid-1"); ttl != time.Second {
		t.Fatalf("blacklist ttl = %v, want 1s", ttl)
	}
	mr.FastForward(2 * time.Second)
	if ok, _ := s.IsBlacklisted(ctx, "sid-1"); ok {
		t.Fatal("blacklist entry should have expired")
	}
}

func TestPasswordChangedMarker(t *testing.T) {
	s, _ := newSessionStoreTest(t)
	ctx := context.Background()

	if _, ok, err := s.PasswordChangedAt(ctx, "u-1"); err != nil || ok {
		t.Fatalf("unset marker = %v, %v", ok, err)
	}
	at := time.Unix(1_700_000_123, 500_000_000)
	if err := s.MarkPasswordChanged(ctx, "u-1", at, time.Hour); err != nil {
		t.Fatalf("mark: %v", err)
	}
	got, ok, err := s.PasswordChangedAt(ctx, "u-1")
	if err != nil || !ok {
		t.Fatalf("marker = %v, %v", ok, err)
	}
	if got.Unix() != 1_700_000_123 {
		t.Fatalf("marker = %v, want whole second", got)
	}
}
