// Package storage persists task records across two physical backends: an
// Azure table keyed by owner identity, and a device-local JSON blob used when
// no authenticated identity exists.
package storage

import (
	"context"

	"taskflow/domain"
)

// TaskStore is the uniform persistence surface the rest of the engine
// depends on. Implementations perform no retry of their own beyond the
// transport's policy; failures surface to the caller.
type TaskStore interface {
	// ListActive returns the owner's full current task set.
	ListActive(ctx context.Context, owner domain.Owner) ([]domain.Task, error)
	// Upsert writes the whole record. Partial patches are deliberately not
	// offered; whole-document writes avoid partial-field races with
	// concurrently running sweeps.
	Upsert(ctx context.Context, owner domain.Owner, task domain.Task) error
	// Delete removes the record. Deleting a missing id is not an error.
	Delete(ctx context.Context, owner domain.Owner, id string) error
	// QueryOverdueIncomplete returns records with DueDate before cutoff
	// (epoch seconds) that are not done.
	QueryOverdueIncomplete(ctx context.Context, owner domain.Owner, cutoff int64) ([]domain.Task, error)
}
