// Package digest keeps the recurring daily notification in step with the
// owner's open tasks.
package digest

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

// SummaryUpdater is the notification side of the publisher.
type SummaryUpdater interface {
	UpdateDailySummary(ctx context.Context, owner domain.Owner, count int) error
}

// Publisher recomputes "tasks due today, not yet done" on every live-feed
// snapshot and republishes the count. Each update replaces the previously
// scheduled daily summary.
type Publisher struct {
	bridge SummaryUpdater
	owner  domain.Owner
	loc    *time.Location
	logger *log.Logger
	now    func() time.Time
}

func New(bridge SummaryUpdater, owner domain.Owner, loc *time.Location, logger *log.Logger) *Publisher {
	if loc == nil {
		loc = time.Local
	}
	return &Publisher{bridge: bridge, owner: owner, loc: loc, logger: logger, now: time.Now}
}

// Run consumes live-feed snapshots until the channel closes or ctx ends.
// Update failures are logged; the loop proceeds to the next snapshot.
func (p *Publisher) Run(ctx context.Context, snapshots <-chan []domain.Task) {
	for {
		select {
		case <-ctx.Done():
			return
		case tasks, ok := <-snapshots:
			if !ok {
				return
			}
			count := DueTodayCount(tasks, p.now(), p.loc)
			if err := p.bridge.UpdateDailySummary(ctx, p.owner, count); err != nil {
				if ctx.Err() == nil {
					p.logger.WithError(err).Error("daily summary update failed")
				}
			}
		}
	}
}

// DueTodayCount counts open tasks due on the calendar day containing now.
func DueTodayCount(tasks []domain.Task, now time.Time, loc *time.Location) int {
	count := 0
	for _, t := range tasks {
		if domain.DueToday(t, now, loc) {
			count++
		}
	}
	return count
}
