package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"taskflow/domain"
)

// Cache wraps a TaskStore with Redis-backed caching of ListActive reads.
// Writes evict the owner's entry so the next read refetches. Overdue queries
// bypass the cache; the sweeper must see current data.
type Cache struct {
	base  TaskStore
	redis *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewCache creates a caching wrapper. A nil Redis client degrades to a
// pass-through.
func NewCache(base TaskStore, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListActive(ctx context.Context, owner domain.Owner) ([]domain.Task, error) {
	if tasks, ok := c.loadFromCache(ctx, owner); ok {
		return tasks, nil
	}

	// Collapse concurrent misses for the same owner into one backend read.
	v, err, _ := c.group.Do(owner.Key(), func() (any, error) {
		tasks, err := c.base.ListActive(ctx, owner)
		if err != nil {
			return nil, err
		}
		c.store(ctx, owner, tasks)
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Task), nil
}

func (c *Cache) Upsert(ctx context.Context, owner domain.Owner, task domain.Task) error {
	if err := c.base.Upsert(ctx, owner, task); err != nil {
		return err
	}
	c.evict(ctx, owner)
	return nil
}

func (c *Cache) Delete(ctx context.Context, owner domain.Owner, id string) error {
	if err := c.base.Delete(ctx, owner, id); err != nil {
		return err
	}
	c.evict(ctx, owner)
	return nil
}

func (c *Cache) QueryOverdueIncomplete(ctx context.Context, owner domain.Owner, cutoff int64) ([]domain.Task, error) {
	return c.base.QueryOverdueIncomplete(ctx, owner, cutoff)
}

func (c *Cache) loadFromCache(ctx context.Context, owner domain.Owner) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(owner)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(owner)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(owner)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, owner domain.Owner, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(owner), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, owner domain.Owner) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(owner)).Result()
}

func tasksCacheKey(owner domain.Owner) string {
	return "tasks:" + owner.Key()
}
