// Package cache keeps the top-students leaderboard in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pavelanni/examhall/internal/model"
)

const leaderboardKey = "examhall:leaderboard"

// Leaderboard stores one JSON-encoded list per limit in a single hash, so a
// single DEL invalidates every cached limit.
type Leaderboard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboard(client *redis.Client, ttl time.Duration) *Leaderboard {
	return &Leaderboard{client: client, ttl: ttl}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

func (l *Leaderboard) Get(ctx context.Context, limit int) ([]model.LeaderboardEntry, bool, error) {
	raw, err := l.client.HGet(ctx, leaderboardKey, strconv.Itoa(limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entries []model.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, fmt.Errorf("decode cached leaderboard: %w", err)
	}
	return entries, true, nil
}

func (l *Leaderboard) Set(ctx context.Context, limit int, entries []model.LeaderboardEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, leaderboardKey, strconv.Itoa(limit), raw)
		p.Expire(ctx, leaderboardKey, l.ttl)
		return nil
	})
	return err
}

func (l *Leaderboard) Invalidate(ctx context.Context) error {
	return l.client.Del(ctx, leaderboardKey).Err()
}
