package storage

import (
	"context"

	"taskflow/domain"
)

// Dual routes every operation to the remote store when the owner is
// authenticated and to the local fallback otherwise. Only remote sessions
// get live multi-device consistency; anonymous sessions still function.
type Dual struct {
	remote TaskStore
	local  TaskStore
}

func NewDual(remote, local TaskStore) *Dual {
	return &Dual{remote: remote, local: local}
}

func (d *Dual) route(owner domain.Owner) TaskStore {
	if owner.Anonymous() {
		return d.local
	}
	return d.remote
}

func (d *Dual) ListActive(ctx context.Context, owner domain.Owner) ([]domain.Task, error) {
	return d.route(owner).ListActive(ctx, owner)
}

func (d *Dual) Upsert(ctx context.Context, owner domain.Owner, task domain.Task) error {
	return d.route(owner).Upsert(ctx, owner, task)
}

func (d *Dual) Delete(ctx context.Context, owner domain.Owner, id string) error {
	return d.route(owner).Delete(ctx, owner, id)
}

func (d *Dual) QueryOverdueIncomplete(ctx context.Context, owner domain.Owner, cutoff int64) ([]domain.Task, error) {
	return d.route(owner).QueryOverdueIncomplete(ctx, owner, cutoff)
}
