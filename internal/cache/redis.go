// Package cache holds the redis-backed active-match registry used for
// spectator discovery.
package cache

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	matchKeyPrefix = "gomoku:match:"
	matchIndexKey  = "gomoku:matches"
)

// ConnectRedis initializes a Redis client from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() (*redis.Client, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// MatchRegistry records in-progress public games so spectators can find
// them. Each match is a hash keyed by room id plus a set index of room ids.
type MatchRegistry struct {
	rdb *redis.Client
}

func NewMatchRegistry(rdb *redis.Client) *MatchRegistry {
	return &MatchRegistry{rdb: rdb}
}

// Insert records a public game's room id and both player ids.
func (r *MatchRegistry) Insert(ctx context.Context, roomID, player1ID, player2ID string) error {
	key := matchKeyPrefix + roomID
	if err := r.rdb.HSet(ctx, key, "player1", player1ID, "player2", player2ID).Err(); err != nil {
		return fmt.Errorf("failed to record match %s: %w", roomID, err)
	}
	if err := r.rdb.SAdd(ctx, matchIndexKey, roomID).Err(); err != nil {
		return fmt.Errorf("failed to index match %s: %w", roomID, err)
	}
	return nil
}

// DeleteByRoom removes a finished or torn-down game from the registry.
func (r *MatchRegistry) DeleteByRoom(ctx context.Context, roomID string) error {
	if err := r.rdb.Del(ctx, matchKeyPrefix+roomID).Err(); err != nil {
		return fmt.Errorf("failed to delete match %s: %w", roomID, err)
	}
	if err := r.rdb.SRem(ctx, matchIndexKey, roomID).Err(); err != nil {
		return fmt.Errorf("failed to unindex match %s: %w", roomID, err)
	}
	return nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
