package digest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

type fakeBridge struct {
	mu     sync.Mutex
	counts []int
	fail   error
}

func (f *fakeBridge) UpdateDailySummary(_ context.Context, _ domain.Owner, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.counts = append(f.counts, count)
	return nil
}

func (f *fakeBridge) recorded() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.counts...)
}

func TestDueTodayCount(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)
	tasks := []domain.Task{
		{ID: "done-today", DueDate: now.Add(time.Hour).Unix(), Done: true},
		{ID: "open-morning", DueDate: time.Date(2025, 6, 1, 9, 0, 0, 0, loc).Unix()},
		{ID: "open-evening", DueDate: time.Date(2025, 6, 1, 22, 0, 0, 0, loc).Unix()},
		{ID: "open-tomorrow", DueDate: now.Add(24 * time.Hour).Unix()},
	}

	if got := DueTodayCount(tasks, now, loc); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}
}

func TestPublisherRepublishesPerSnapshot(t *testing.T) {
	bridge := &fakeBridge{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	p := New(bridge, domain.AuthenticatedOwner("user-1"), time.UTC, log.New())
	p.now = func() time.Time { return now }

	snapshots := make(chan []domain.Task)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, snapshots)
		close(done)
	}()

	snapshots <- []domain.Task{
		{ID: "a", DueDate: now.Unix()},
		{ID: "b", DueDate: now.Unix()},
		{ID: "c", DueDate: now.Unix(), Done: true},
	}
	snapshots <- []domain.Task{}
	close(snapshots)
	<-done
	cancel()

	if got := bridge.recorded(); len(got) != 2 || got[0] != 2 || got[1] != 0 {
		t.Fatalf("unexpected counts: %v", got)
	}
}

func TestPublisherSurvivesBridgeFailure(t *testing.T) {
	bridge := &fakeBridge{fail: errors.New("push service down")}
	p := New(bridge, domain.AnonymousOwner(), time.UTC, log.New())

	snapshots := make(chan []domain.Task, 2)
	snapshots <- []domain.Task{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, snapshots)
		close(done)
	}()

	// Recover and confirm the loop is still consuming.
	bridge.mu.Lock()
	bridge.fail = nil
	bridge.mu.Unlock()
	snapshots <- []domain.Task{}
	close(snapshots)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher did not drain snapshots after a failure")
	}
	cancel()

	if got := bridge.recorded(); len(got) != 1 {
		t.Fatalf("expected one successful update, got %v", got)
	}
}
