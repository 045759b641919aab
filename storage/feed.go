package storage

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

// Feed redelivers the owner's full current task set whenever a change signal
// arrives, plus on a keepalive interval. Snapshots are monotonically more
// current but not every intermediate state is delivered: a slow consumer
// only sees the latest one.
type Feed struct {
	store    TaskStore
	interval time.Duration
	logger   *log.Logger
}

func NewFeed(store TaskStore, interval time.Duration, logger *log.Logger) *Feed {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Feed{store: store, interval: interval, logger: logger}
}

// Watch starts the live feed for one owner. Each receive on signal triggers
// a refetch. The returned channel has capacity one and stale snapshots are
// replaced, never queued; it closes when ctx ends.
func (f *Feed) Watch(ctx context.Context, owner domain.Owner, signal <-chan struct{}) <-chan []domain.Task {
	out := make(chan []domain.Task, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		f.deliver(ctx, owner, out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
				f.deliver(ctx, owner, out)
			case <-ticker.C:
				f.deliver(ctx, owner, out)
			}
		}
	}()
	return out
}

func (f *Feed) deliver(ctx context.Context, owner domain.Owner, out chan []domain.Task) {
	tasks, err := f.store.ListActive(ctx, owner)
	if err != nil {
		if ctx.Err() == nil {
			f.logger.WithError(err).Error("live feed fetch failed")
		}
		return
	}
	// Drop the undelivered previous snapshot so the consumer always gets
	// the most current set.
	select {
	case <-out:
	default:
	}
	select {
	case out <- tasks:
	case <-ctx.Done():
	}
}
