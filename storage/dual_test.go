package storage

import (
	"context"
	"testing"

	"taskflow/domain"
)

func TestDualRoutesByIdentity(t *testing.T) {
	remote := newMemStore()
	local := newMemStore()
	dual := NewDual(remote, local)
	ctx := context.Background()

	authed := domain.AuthenticatedOwner("user-1")
	anon := domain.AnonymousOwner()

	if err := dual.Upsert(ctx, authed, domain.Task{ID: "r1"}); err != nil {
		t.Fatalf("remote upsert: %v", err)
	}
	if err := dual.Upsert(ctx, anon, domain.Task{ID: "l1"}); err != nil {
		t.Fatalf("local upsert: %v", err)
	}

	remoteTasks, err := dual.ListActive(ctx, authed)
	if err != nil {
		t.Fatalf("remote list: %v", err)
	}
	if len(remoteTasks) != 1 || remoteTasks[0].ID != "r1" {
		t.Fatalf("unexpected remote tasks: %#v", remoteTasks)
	}

	localTasks, err := dual.ListActive(ctx, anon)
	if err != nil {
		t.Fatalf("local list: %v", err)
	}
	if len(localTasks) != 1 || localTasks[0].ID != "l1" {
		t.Fatalf("unexpected local tasks: %#v", localTasks)
	}

	if len(local.records["user-1"]) != 0 {
		t.Fatal("authenticated write leaked into the local store")
	}
}

func TestDualDeleteTargetsActiveBackend(t *testing.T) {
	remote := newMemStore()
	local := newMemStore()
	dual := NewDual(remote, local)
	ctx := context.Background()

	anon := domain.AnonymousOwner()
	if err := dual.Upsert(ctx, anon, domain.Task{ID: "l1"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := dual.Delete(ctx, anon, "l1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	tasks, err := dual.ListActive(ctx, anon)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty local store, got %#v", tasks)
	}
}
