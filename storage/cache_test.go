package storage

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"taskflow/domain"
)

func newTestCache(t *testing.T, base TaskStore, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(base, client, ttl), mr
}

func TestCacheListMissThenHit(t *testing.T) {
	base := newMemStore()
	cache, mr := newTestCache(t, base, time.Minute)
	ctx := context.Background()
	owner := domain.AuthenticatedOwner("user-1")

	if err := base.Upsert(ctx, owner, domain.Task{ID: "t1", Title: "write code"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tasks, err := cache.ListActive(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if base.listCalls != 1 {
		t.Fatalf("expected 1 backend call, got %d", base.listCalls)
	}
	if ttl := mr.TTL(tasksCacheKey(owner)); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	if _, err := cache.ListActive(ctx, owner); err != nil {
		t.Fatalf("cached list: %v", err)
	}
	if base.listCalls != 1 {
		t.Fatalf("expected cached read to avoid backend, calls=%d", base.listCalls)
	}
}

func TestCacheWriteEvicts(t *testing.T) {
	base := newMemStore()
	cache, mr := newTestCache(t, base, time.Minute)
	ctx := context.Background()
	owner := domain.AuthenticatedOwner("user-1")

	if _, err := cache.ListActive(ctx, owner); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if !mr.Exists(tasksCacheKey(owner)) {
		t.Fatal("expected cache entry after read")
	}

	if err := cache.Upsert(ctx, owner, domain.Task{ID: "t1"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if mr.Exists(tasksCacheKey(owner)) {
		t.Fatal("expected eviction after upsert")
	}

	tasks, err := cache.ListActive(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected refetched tasks, got %#v", tasks)
	}

	if err := cache.Delete(ctx, owner, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists(tasksCacheKey(owner)) {
		t.Fatal("expected eviction after delete")
	}
}

func TestCacheFailedWriteKeepsEntry(t *testing.T) {
	base := newMemStore()
	cache, mr := newTestCache(t, base, time.Minute)
	ctx := context.Background()
	owner := domain.AuthenticatedOwner("user-1")

	if _, err := cache.ListActive(ctx, owner); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	base.failWrite = errStoreDown
	if err := cache.Upsert(ctx, owner, domain.Task{ID: "t1"}); err == nil {
		t.Fatal("expected write failure")
	}
	if !mr.Exists(tasksCacheKey(owner)) {
		t.Fatal("failed write must not evict")
	}
}

func TestCacheOverdueQueryBypassesCache(t *testing.T) {
	base := newMemStore()
	cache, _ := newTestCache(t, base, time.Minute)
	ctx := context.Background()
	owner := domain.AuthenticatedOwner("user-1")

	if err := base.Upsert(ctx, owner, domain.Task{ID: "t1", DueDate: 10}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	matched, err := cache.QueryOverdueIncomplete(ctx, owner, 100)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matched) != 1 {
		t.Fatalf("unexpected matches: %#v", matched)
	}
}

func TestCacheNilClientPassesThrough(t *testing.T) {
	base := newMemStore()
	cache := NewCache(base, nil, time.Minute)
	ctx := context.Background()
	owner := domain.AuthenticatedOwner("user-1")

	if _, err := cache.ListActive(ctx, owner); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := cache.ListActive(ctx, owner); err != nil {
		t.Fatalf("list: %v", err)
	}
	if base.listCalls != 2 {
		t.Fatalf("expected pass-through reads, calls=%d", base.listCalls)
	}
}
