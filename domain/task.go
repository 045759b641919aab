package domain

import (
	"strings"
	"time"
)

const (
	// ReminderLead is how long before the due date a one-shot reminder fires.
	ReminderLead = 30 * time.Minute

	// CreateGrace is how far in the past a new task's due date may lie.
	CreateGrace = 24 * time.Hour

	// ExpiryGrace is how long an overdue, incomplete task survives before
	// the sweeper purges it.
	ExpiryGrace = 24 * time.Hour
)

// Task is a single to-do item. DueDate and CreatedDate are epoch seconds.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     int64  `json:"dueDate"`
	CreatedDate int64  `json:"createdDate"`
	Done        bool   `json:"done"`
	RemindMe    bool   `json:"remindMe"`
}

// ValidateNew checks creation input before any write happens.
func ValidateNew(title string, dueDate int64, now time.Time) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Reason: "title must not be blank"}
	}
	if dueDate < now.Add(-CreateGrace).Unix() {
		return &ValidationError{Reason: "due date is more than 24 hours in the past"}
	}
	return nil
}

// ReminderFireTime is the instant a task's one-shot reminder should fire.
func ReminderFireTime(t Task) time.Time {
	return time.Unix(t.DueDate, 0).Add(-ReminderLead)
}

// DueToday reports whether the task falls on the calendar day containing now
// in the given location and is still open.
func DueToday(t Task, now time.Time, loc *time.Location) bool {
	if t.Done {
		return false
	}
	y, m, d := now.In(loc).Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	due := time.Unix(t.DueDate, 0)
	return !due.Before(dayStart) && due.Before(dayEnd)
}
