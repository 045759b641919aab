// Package sweep purges incomplete tasks whose due date is more than a grace
// window in the past.
package sweep

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"taskflow/domain"
	"taskflow/storage"
)

// Sweeper runs the purge cycle for a single owner: once at startup, then on
// a fixed interval. A failed cycle is logged and the next scheduled run
// retries naturally.
type Sweeper struct {
	store    storage.TaskStore
	owner    domain.Owner
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time
}

func New(store storage.TaskStore, owner domain.Owner, interval time.Duration, logger *log.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: store, owner: owner, interval: interval, logger: logger, now: time.Now}
}

// Run blocks until ctx ends.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	cutoff := s.now().Add(-domain.ExpiryGrace).Unix()
	expired, err := s.store.QueryOverdueIncomplete(ctx, s.owner, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.WithError(err).Error("expiration sweep query failed")
		}
		return
	}
	for _, task := range expired {
		// A task completed or deleted between the query and this delete is
		// a harmless no-op.
		if err := s.store.Delete(ctx, s.owner, task.ID); err != nil {
			if ctx.Err() == nil {
				s.logger.WithError(err).WithField("task", task.ID).Error("expiration sweep delete failed")
			}
			return
		}
		s.logger.WithField("task", task.ID).Debug("purged expired task")
	}
}
