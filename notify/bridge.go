// Package notify is the only component that talks to the push delivery
// pipeline. One-shot reminders go onto a queue with a visibility delay so the
// dispatcher picks them up at fire time; the recurring daily digest lives in
// a single table slot that each update replaces.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

const (
	// AudienceAll targets every registered device.
	AudienceAll = "all"

	// Daily digest fire time, device-local.
	digestHour   = 8
	digestMinute = 30

	// Queue message visibility cannot exceed seven days; reminders further
	// out are enqueued at the cap and re-delayed by the dispatcher.
	maxVisibilityDelay = 7 * 24 * time.Hour
)

// reminderMessage is the payload handed to the push dispatcher.
type reminderMessage struct {
	Audience string `json:"audience"`
	Message  string `json:"message"`
	FireAt   int64  `json:"fireAt"`
}

type digestEntity struct {
	aztables.Entity
	Body   string `json:"Body"`
	Count  int32  `json:"Count"`
	Hour   int32  `json:"Hour"`
	Minute int32  `json:"Minute"`
}

type reminderQueue interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

type digestTable interface {
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
}

// Bridge schedules external notification side effects. All operations are
// best-effort: a bridge constructed without credentials logs and reports
// success so task mutations never fail for want of notifications.
type Bridge struct {
	queue   reminderQueue
	digests digestTable
	logger  *log.Logger
	now     func() time.Time
}

// New creates a Bridge. Either client may be nil when the push service's
// credentials are absent.
func New(queue *azqueue.QueueClient, digests *aztables.Client, logger *log.Logger) *Bridge {
	b := &Bridge{logger: logger, now: time.Now}
	if queue != nil {
		b.queue = queue
	}
	if digests != nil {
		b.digests = digests
	}
	return b
}

// ScheduleReminder requests a one-shot push at fireAt. Fire times already in
// the past are the caller's concern; the bridge clamps the delay to zero.
func (b *Bridge) ScheduleReminder(ctx context.Context, message string, fireAt time.Time) error {
	if b.queue == nil {
		b.logger.Debug("reminder queue not configured, skipping reminder")
		return nil
	}

	payload, err := json.Marshal(reminderMessage{
		Audience: AudienceAll,
		Message:  message,
		FireAt:   fireAt.Unix(),
	})
	if err != nil {
		return err
	}

	delay := fireAt.Sub(b.now())
	if delay < 0 {
		delay = 0
	}
	if delay > maxVisibilityDelay {
		delay = maxVisibilityDelay
	}
	visibility := int32(delay / time.Second)
	_, err = b.queue.EnqueueMessage(ctx, string(payload), &azqueue.EnqueueMessageOptions{
		VisibilityTimeout: &visibility,
	})
	return err
}

// UpdateDailySummary replaces the owner's recurring daily notification with
// the current due-today count. Each owner has exactly one slot.
func (b *Bridge) UpdateDailySummary(ctx context.Context, owner domain.Owner, count int) error {
	if b.digests == nil {
		b.logger.Debug("digest table not configured, skipping daily summary")
		return nil
	}

	ent := digestEntity{
		Entity: aztables.Entity{PartitionKey: "daily-digest", RowKey: owner.Key()},
		Body:   DigestBody(count),
		Count:  int32(count),
		Hour:   digestHour,
		Minute: digestMinute,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = b.digests.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// DigestBody renders the daily summary text for the given open-task count.
func DigestBody(count int) string {
	if count == 1 {
		return "You have 1 task due today."
	}
	return fmt.Sprintf("You have %d tasks due today.", count)
}
