package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewLimiter(client)
}

func TestAllowWithinLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	rule := Rule{Key: "rl:test:", Limit: 3, Window: 30 * time.Second}
	id := uuid.New().String()
	t.Cleanup(func() { l.client.Del(ctx, rule.Key+id) })

	for i := 0; i < rule.Limit; i++ {
		ok, err := l.Allow(ctx, id, rule)
		if err != nil {
			t.Fatalf("Allow #%d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("Allow #%d = false, want true", i+1)
		}
	}

	ok, err := l.Allow(ctx, id, rule)
	if err != nil {
		t.Fatalf("Allow over limit: %v", err)
	}
	if ok {
		t.Error("Allow over limit = true, want false")
	}
}

func TestRemaining(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	rule := Rule{Key: "rl:test:", Limit: 5, Window: 30 * time.Second}
	id := uuid.New().String()
	t.Cleanup(func() { l.client.Del(ctx, rule.Key+id) })

	remaining, err := l.Remaining(ctx, id, rule)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != rule.Limit {
		t.Errorf("Remaining before any use = %d, want %d", remaining, rule.Limit)
	}

	if _, err := l.Allow(ctx, id, rule); err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if _, err := l.Allow(ctx, id, rule); err != nil {
		t.Fatalf("Allow: %v", err)
	}

	remaining, err = l.Remaining(ctx, id, rule)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != rule.Limit-2 {
		t.Errorf("Remaining after 2 uses = %d, want %d", remaining, rule.Limit-2)
	}
}
