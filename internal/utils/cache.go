package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"        // Matching redis.Nil
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

const (
	LeaderboardKey = "ledger:top:10"  // Cached top balances ranking
	LeaderboardTTL = 30 * time.Second // Upper bound on ranking staleness
)

// GetCache loads and decodes key. A missing key is reported as found == false.
func GetCache[T any](ctx context.Context, rdb redis.Cmdable, key string) (value T, found bool, err error) {
	raw, err := rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return value, false, nil
	case err != nil:
		return value, false, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, err
	}
	return value, true, nil
}

// SetCache stores value as JSON for ttl
func SetCache[T any](ctx context.Context, rdb redis.Cmdable, key string, value T, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, ttl).Err()
}

// DeleteCache removes keys, missing keys are ignored
func DeleteCache(ctx context.Context, rdb redis.Cmdable, keys ...string) error {
	return rdb.Del(ctx, keys...).Err()
}
