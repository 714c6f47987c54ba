package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"strconv"       // Key formatting
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// WalletCacheKey returns the cache key for a user's wallet view.
func WalletCacheKey(userID uint) string {
	return "wallet:user:" + strconv.Itoa(int(userID))
}

// TxHistoryCacheKey returns the cache key for one page of a user's
// transaction history.
func TxHistoryCacheKey(userID uint, page, pageSize int) string {
	return txHistoryPrefix(userID) + ":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
}

func txHistoryPrefix(userID uint) string {
	return "txhistory:user:" + strconv.Itoa(int(userID))
}

// InvalidateUserCaches drops the wallet view and every cached history page
// for a user after a committed mutation, whatever page size the pages were
// read with.
func InvalidateUserCaches(ctx context.Context, rdb *redis.Client, userID uint) error {
	keys, err := rdb.Keys(ctx, txHistoryPrefix(userID)+":*").Result()
	if err != nil {
		return err
	}
	keys = append(keys, WalletCacheKey(userID))
	return rdb.Del(ctx, keys...).Err()
}

// GetCache retrieves a value from Redis and unmarshals it into dest
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if err == redis.Nil {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}
