package lifecycle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"taskflow/domain"
)

type countingRunner struct {
	started atomic.Int32
	stopped atomic.Int32
}

func (r *countingRunner) Run(ctx context.Context) {
	r.started.Add(1)
	<-ctx.Done()
	r.stopped.Add(1)
}

func TestSessionManagerStartsOncePerOwner(t *testing.T) {
	runner := &countingRunner{}
	m := NewSessionManager(func(domain.Owner) []Runner { return []Runner{runner} })
	owner := domain.AuthenticatedOwner("user-1")

	releaseA := m.Acquire(owner)
	releaseB := m.Acquire(owner)

	waitFor(t, func() bool { return runner.started.Load() == 1 })
	if m.ActiveSessions() != 1 {
		t.Fatalf("expected 1 active session, got %d", m.ActiveSessions())
	}

	releaseA()
	if runner.stopped.Load() != 0 {
		t.Fatal("session stopped while still referenced")
	}

	releaseB()
	releaseB() // idempotent
	waitFor(t, func() bool { return runner.stopped.Load() == 1 })
	if m.ActiveSessions() != 0 {
		t.Fatalf("expected no active sessions, got %d", m.ActiveSessions())
	}
}

func TestSessionManagerIsolatesOwners(t *testing.T) {
	runners := map[string]*countingRunner{}
	m := NewSessionManager(func(owner domain.Owner) []Runner {
		r := &countingRunner{}
		runners[owner.Key()] = r
		return []Runner{r}
	})

	releaseAuthed := m.Acquire(domain.AuthenticatedOwner("user-1"))
	releaseAnon := m.Acquire(domain.AnonymousOwner())

	if m.ActiveSessions() != 2 {
		t.Fatalf("expected 2 active sessions, got %d", m.ActiveSessions())
	}

	releaseAuthed()
	waitFor(t, func() bool { return runners["user-1"].stopped.Load() == 1 })
	if runners["local"].stopped.Load() != 0 {
		t.Fatal("releasing one owner stopped another owner's session")
	}
	releaseAnon()
}

func TestSessionManagerRestartsAfterFullRelease(t *testing.T) {
	var builds atomic.Int32
	m := NewSessionManager(func(domain.Owner) []Runner {
		builds.Add(1)
		return nil
	})
	owner := domain.AuthenticatedOwner("user-1")

	m.Acquire(owner)()
	m.Acquire(owner)()

	if builds.Load() != 2 {
		t.Fatalf("expected a fresh session per acquire cycle, got %d builds", builds.Load())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
