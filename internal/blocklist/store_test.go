package blocklist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, 2), mr
}

func TestStore_BlockAndLookup(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Block(ctx, "abc123", time.Minute); err != nil {
		t.Fatalf("Block: %v", err)
	}

	blocked, err := s.IsBlocked(ctx, "abc123")
	if err != nil {
		t.Fatalf("IsBlocked: %v", err)
	}
	if !blocked {
		t.Error("blocked token should be reported blocked")
	}
	// Entries live in the blocklist:<hash> namespace.
	if !mr.Exists("blocklist:abc123") {
		t.Error("entry not stored under blocklist:<hash>")
	}

	blocked, err = s.IsBlocked(ctx, "other")
	if err != nil {
		t.Fatalf("IsBlocked: %v", err)
	}
	if blocked {
		t.Error("unknown token should not be blocked")
	}
}

func TestStore_EntryExpiresWithTokenLifetime(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Block(ctx, "abc123", time.Minute); err != nil {
		t.Fatalf("Block: %v", err)
	}
	mr.FastForward(time.Minute + time.Second)

	blocked, err := s.IsBlocked(ctx, "abc123")
	if err != nil {
		t.Fatalf("IsBlocked: %v", err)
	}
	if blocked {
		t.Error("entry should expire with the token lifetime")
	}
}

func TestStore_NonPositiveTTLIsNoop(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Block(ctx, "expired", 0); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if mr.Exists(keyPrefix + "expired") {
		t.Error("expired tokens should not be stored")
	}
}

func TestStore_FailsClosedOnOutage(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	mr.Close()

	blocked, err := s.IsBlocked(ctx, "abc123")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if !blocked {
		t.Error("outage must report blocked")
	}

	if err := s.Block(ctx, "abc123", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Block err = %v, want ErrUnavailable", err)
	}
}

func TestStore_RetriesBeforeGivingUp(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := New(rdb, 3)
	calls := 0
	err = s.withRetry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}
