package storage

import (
	"context"
	"errors"
	"sync"

	"taskflow/domain"
)

// memStore is an in-memory TaskStore used by the dual, cache and feed tests.
type memStore struct {
	mu      sync.Mutex
	records map[string]map[string]domain.Task

	listCalls int
	failList  error
	failWrite error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]map[string]domain.Task{}}
}

func (m *memStore) bucket(owner domain.Owner) map[string]domain.Task {
	b, ok := m.records[owner.Key()]
	if !ok {
		b = map[string]domain.Task{}
		m.records[owner.Key()] = b
	}
	return b
}

func (m *memStore) ListActive(_ context.Context, owner domain.Owner) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.failList != nil {
		return nil, m.failList
	}
	out := []domain.Task{}
	for _, t := range m.bucket(owner) {
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) Upsert(_ context.Context, owner domain.Owner, task domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	m.bucket(owner)[task.ID] = task
	return nil
}

func (m *memStore) Delete(_ context.Context, owner domain.Owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	delete(m.bucket(owner), id)
	return nil
}

func (m *memStore) QueryOverdueIncomplete(_ context.Context, owner domain.Owner, cutoff int64) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	out := []domain.Task{}
	for _, t := range m.bucket(owner) {
		if !t.Done && t.DueDate < cutoff {
			out = append(out, t)
		}
	}
	return out, nil
}

var errStoreDown = errors.New("store unavailable")
