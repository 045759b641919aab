// Package bus delivers task status-change events to every subscriber in the
// running process. It carries no durability guarantee; the task store stays
// the source of truth on the next read.
package bus

import (
	"sort"
	"sync"

	"taskflow/domain"
)

// Handler receives every published change. Filtering by task id is the
// handler's responsibility.
type Handler func(domain.StatusChange)

// StatusBus fans status changes out to subscribers. Delivery from a single
// publisher goroutine preserves publish order; a rollback published after an
// optimistic update is always delivered after it.
type StatusBus struct {
	mu     sync.Mutex
	subs   map[int]Handler
	nextID int
	mirror func(domain.StatusChange)
}

func New() *StatusBus {
	return &StatusBus{subs: make(map[int]Handler)}
}

// Subscribe registers a handler and returns its unsubscribe func. The
// returned func is idempotent.
func (b *StatusBus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers the change synchronously to all current subscribers, then
// mirrors it to the relay when one is attached.
func (b *StatusBus) Publish(ch domain.StatusChange) {
	b.publishLocal(ch)

	b.mu.Lock()
	mirror := b.mirror
	b.mu.Unlock()
	if mirror != nil {
		mirror(ch)
	}
}

// publishLocal invokes handlers outside the lock so a handler may subscribe
// or unsubscribe without deadlocking.
func (b *StatusBus) publishLocal(ch domain.StatusChange) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, len(ids))
	for i, id := range ids {
		handlers[i] = b.subs[id]
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(ch)
	}
}

func (b *StatusBus) setMirror(fn func(domain.StatusChange)) {
	b.mu.Lock()
	b.mirror = fn
	b.mu.Unlock()
}
