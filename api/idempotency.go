package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taskflow/domain"
)

// RedisDeduper stores processed idempotency keys in Redis so all instances
// can avoid reprocessing the same create command.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(owner domain.Owner, key string) string {
	return fmt.Sprintf("idem:%s:%s", owner.Key(), key)
}

// Add records the key if it does not already exist. It returns true when the
// key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, owner domain.Owner, key string) (bool, error) {
	if r.client == nil {
		return true, nil
	}
	return r.client.SetNX(ctx, r.key(owner, key), 1, r.ttl).Result()
}

// Remove deletes a previously recorded key. It is used when persistence
// fails so the caller may retry the command.
func (r *RedisDeduper) Remove(ctx context.Context, owner domain.Owner, key string) error {
	if r.client == nil {
		return nil
	}
	return r.client.Del(ctx, r.key(owner, key)).Err()
}
