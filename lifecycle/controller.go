// Package lifecycle orchestrates task mutations: optimistic status updates
// with rollback on persistence failure, reminder scheduling at creation time,
// and the per-owner background session.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
	"taskflow/storage"
)

// ReminderScheduler is the notification side the controller depends on.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, message string, fireAt time.Time) error
}

// StatusPublisher broadcasts completion-state changes to all views.
type StatusPublisher interface {
	Publish(domain.StatusChange)
}

// CreateInput carries the fields of a user "save" action.
type CreateInput struct {
	Title       string
	Description string
	DueDate     int64
	RemindMe    bool
}

// Controller exposes the mutation API views call.
type Controller struct {
	store  storage.TaskStore
	bridge ReminderScheduler
	bus    StatusPublisher
	logger *log.Logger
	now    func() time.Time
}

func NewController(store storage.TaskStore, bridge ReminderScheduler, bus StatusPublisher, logger *log.Logger) *Controller {
	return &Controller{store: store, bridge: bridge, bus: bus, logger: logger, now: time.Now}
}

// Create validates the input, mints the record and persists it. When
// RemindMe is set and the fire time has not already passed, a one-shot
// reminder is scheduled best-effort: a scheduling failure is logged and the
// created task stands.
func (c *Controller) Create(ctx context.Context, owner domain.Owner, in CreateInput) (domain.Task, error) {
	now := c.now()
	if err := domain.ValidateNew(in.Title, in.DueDate, now); err != nil {
		return domain.Task{}, err
	}

	task := domain.Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		DueDate:     in.DueDate,
		CreatedDate: now.Unix(),
		Done:        false,
		RemindMe:    in.RemindMe,
	}
	if err := c.store.Upsert(ctx, owner, task); err != nil {
		return domain.Task{}, &domain.PersistenceError{Op: "create task", Err: err}
	}

	if task.RemindMe {
		fireAt := domain.ReminderFireTime(task)
		if fireAt.After(now) {
			msg := fmt.Sprintf("%s is due in 30 minutes", task.Title)
			if err := c.bridge.ScheduleReminder(ctx, msg, fireAt); err != nil {
				c.logger.WithError(err).WithField("task", task.ID).Error("unable to schedule reminder")
			}
		}
	}
	return task, nil
}

// ToggleDone flips the completion flag. The flipped state is published
// immediately so every view of the id updates at once; if the durable write
// fails, the original state is republished and all views revert together.
// The returned bool is the state every subscriber converges to.
func (c *Controller) ToggleDone(ctx context.Context, owner domain.Owner, task domain.Task) (bool, error) {
	next := !task.Done
	c.bus.Publish(domain.StatusChange{TaskID: task.ID, Done: next})

	updated := task
	updated.Done = next
	if err := c.store.Upsert(ctx, owner, updated); err != nil {
		c.bus.Publish(domain.StatusChange{TaskID: task.ID, Done: task.Done})
		return task.Done, &domain.PersistenceError{Op: "toggle task", Err: err}
	}
	return next, nil
}

// Delete removes the record. List views ride the live feed, so no optimistic
// removal is published.
func (c *Controller) Delete(ctx context.Context, owner domain.Owner, id string) error {
	if err := c.store.Delete(ctx, owner, id); err != nil {
		return &domain.PersistenceError{Op: "delete task", Err: err}
	}
	return nil
}
