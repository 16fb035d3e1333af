package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pavelanni/examhall/internal/model"
)

// No server listens on the address, so every call must fail fast and report
// a miss rather than stale data.
func TestLeaderboardUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	l := NewLeaderboard(client, time.Minute)
	ctx := context.Background()

	entries, ok, err := l.Get(ctx, 10)
	if err == nil {
		t.Error("expected error from unreachable redis")
	}
	if ok || entries != nil {
		t.Errorf("expected miss, got ok=%v entries=%v", ok, entries)
	}
	if err := l.Set(ctx, 10, []model.LeaderboardEntry{{Name: "a", ExamsCompleted: 1}}); err == nil {
		t.Error("expected error from Set")
	}
	if err := l.Invalidate(ctx); err == nil {
		t.Error("expected error from Invalidate")
	}
}

func TestDialUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Dial(ctx, "127.0.0.1:1"); err == nil {
		t.Error("expected dial error")
	}
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *Leaderboard) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewLeaderboard(client, time.Minute)
}

func TestLeaderboardRoundTrip(t *testing.T) {
	mr, l := newMiniredis(t)
	ctx := context.Background()

	if _, ok, err := l.Get(ctx, 10); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	top10 := []model.LeaderboardEntry{{Name: "ann", ExamsCompleted: 3}, {Name: "bob", ExamsCompleted: 1}}
	top1 := top10[:1]
	if err := l.Set(ctx, 10, top10); err != nil {
		t.Fatalf("Set(10): %v", err)
	}
	if err := l.Set(ctx, 1, top1); err != nil {
		t.Fatalf("Set(1): %v", err)
	}

	tests := []struct {
		limit int
		want  []model.LeaderboardEntry
	}{
		{10, top10},
		{1, top1},
	}
	for _, tt := range tests {
		got, ok, err := l.Get(ctx, tt.limit)
		if err != nil || !ok {
			t.Fatalf("Get(%d): ok=%v err=%v", tt.limit, ok, err)
		}
		if len(got) != len(tt.want) || got[0] != tt.want[0] {
			t.Errorf("Get(%d) = %+v, want %+v", tt.limit, got, tt.want)
		}
	}
	if _, ok, _ := l.Get(ctx, 5); ok {
		t.Error("limit 5 was never cached")
	}

	fields, err := mr.HKeys(leaderboardKey)
	if err != nil {
		t.Fatalf("HKeys: %v", err)
	}
	if len(fields) != 2 {
		t.Errorf("hash fields = %v, want one per limit", fields)
	}
	if ttl := mr.TTL(leaderboardKey); ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want up to a minute", ttl)
	}

	if err := l.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	for _, limit := range []int{1, 10} {
		if _, ok, err := l.Get(ctx, limit); err != nil || ok {
			t.Errorf("Get(%d) after invalidate: ok=%v err=%v", limit, ok, err)
		}
	}
}

func TestLeaderboardExpires(t *testing.T) {
	mr, l := newMiniredis(t)
	ctx := context.Background()

	if err := l.Set(ctx, 10, []model.LeaderboardEntry{{Name: "ann", ExamsCompleted: 1}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, err := l.Get(ctx, 10); err != nil || ok {
		t.Errorf("expired entry still served: ok=%v err=%v", ok, err)
	}
}

func TestLeaderboardCorruptEntry(t *testing.T) {
	mr, l := newMiniredis(t)
	mr.HSet(leaderboardKey, "10", "not json")
	if _, ok, err := l.Get(context.Background(), 10); err == nil || ok {
		t.Errorf("corrupt entry: ok=%v err=%v", ok, err)
	}
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Dial(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Close()
}
