// Package cache provides redis backed storage for statistics responses
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "clashapi:stats:"

// Redis implements clash.Cache. Redis TTLs enforce expiry.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps client. An empty prefix uses the default key prefix.
func NewRedis(client *redis.Client, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = defaultPrefix
	}
	return &Redis{client: client, prefix: keyPrefix}
}

// Dial connects to addr and checks the connection
func Dial(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedis(client, ""), nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Purge removes a single entry. Returns true if it existed.
func (r *Redis) Purge(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, r.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to purge cache: %w", err)
	}
	return n > 0, nil
}

// PurgePrefix removes every entry whose key starts with prefix and returns
// the number deleted. Uses SCAN to avoid blocking Redis.
func (r *Redis) PurgePrefix(ctx context.Context, prefix string) (int, error) {
	fullPrefix := r.prefix + prefix
	var cursor uint64
	total := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, fullPrefix+"*", 1000).Result()
		if err != nil {
			return total, fmt.Errorf("failed to scan cache: %w", err)
		}
		cursor = next
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return total, fmt.Errorf("failed to purge cache: %w", err)
			}
			total += int(n)
		}
		if cursor == 0 {
			return total, nil
		}
	}
}

// Close releases the redis connection
func (r *Redis) Close() error {
	return r.client.Close()
}
