package api

import (
	"context"

	"taskflow/domain"
	"taskflow/lifecycle"
)

// Storage abstracts the read side for handlers.
type Storage interface {
	ListActive(ctx context.Context, owner domain.Owner) ([]domain.Task, error)
}

// Lifecycle is the mutation surface handlers call.
type Lifecycle interface {
	Create(ctx context.Context, owner domain.Owner, in lifecycle.CreateInput) (domain.Task, error)
	ToggleDone(ctx context.Context, owner domain.Owner, task domain.Task) (bool, error)
	Delete(ctx context.Context, owner domain.Owner, id string) error
}

// Authenticator resolves the session owner from request headers. An absent
// header yields the anonymous owner, not an error.
type Authenticator interface {
	OwnerFromAuthHeader(string) (domain.Owner, error)
}

// Deduper prevents reprocessing of duplicate create requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, owner domain.Owner, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, owner domain.Owner, key string) error
}

// Sessions owns the per-owner background loops.
type Sessions interface {
	Acquire(owner domain.Owner) func()
}
