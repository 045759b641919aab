package lifecycle

import (
	"context"
	"sync"

	"taskflow/domain"
)

// Runner is a background loop tied to an owner session.
type Runner interface {
	Run(ctx context.Context)
}

// RunnerFactory builds the background work for one owner: typically the
// expiration sweeper and the daily digest publisher.
type RunnerFactory func(owner domain.Owner) []Runner

type sessionEntry struct {
	refs   int
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

// SessionManager starts the per-owner background loops on first acquire and
// cancels them when the last reference is released, so sign-out or stream
// disconnect never leaks timers or stale-owner feed subscriptions.
type SessionManager struct {
	mu      sync.Mutex
	factory RunnerFactory
	active  map[string]*sessionEntry
}

func NewSessionManager(factory RunnerFactory) *SessionManager {
	return &SessionManager{factory: factory, active: make(map[string]*sessionEntry)}
}

// Acquire ensures the owner's session is running and returns a release func.
// Release is idempotent; the last release cancels the loops and waits for
// them to exit.
func (m *SessionManager) Acquire(owner domain.Owner) func() {
	m.mu.Lock()
	entry, ok := m.active[owner.Key()]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		wg := &sync.WaitGroup{}
		entry = &sessionEntry{cancel: cancel, wg: wg}
		m.active[owner.Key()] = entry
		for _, r := range m.factory(owner) {
			wg.Add(1)
			go func(r Runner) {
				defer wg.Done()
				r.Run(ctx)
			}(r)
		}
	}
	entry.refs++
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { m.release(owner.Key()) })
	}
}

func (m *SessionManager) release(key string) {
	m.mu.Lock()
	entry, ok := m.active[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	entry.refs--
	done := entry.refs <= 0
	if done {
		delete(m.active, key)
	}
	m.mu.Unlock()

	if done {
		entry.cancel()
		entry.wg.Wait()
	}
}

// ActiveSessions reports how many owner sessions currently run background
// work.
func (m *SessionManager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
