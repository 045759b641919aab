package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"taskflow/domain"
)

// Local is the fallback store used when no authenticated identity exists.
// All records live in a single JSON blob on disk, rewritten on every
// mutation; the owner argument is ignored because the store is scoped to
// the device, not to an identity.
type Local struct {
	mu   sync.Mutex
	path string
}

// NewLocal creates the data directory if needed and returns a Local backed
// by a tasks.json file inside it.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Local{path: filepath.Join(dir, "tasks.json")}, nil
}

func (l *Local) read() ([]domain.Task, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Task{}, nil
		}
		return nil, err
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (l *Local) write(tasks []domain.Task) error {
	data, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

// ListActive is a one-shot read of the local set.
func (l *Local) ListActive(_ context.Context, _ domain.Owner) ([]domain.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// Upsert rewrites the whole blob with the record replaced or appended.
func (l *Local) Upsert(_ context.Context, _ domain.Owner, task domain.Task) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks, err := l.read()
	if err != nil {
		return err
	}
	replaced := false
	for i := range tasks {
		if tasks[i].ID == task.ID {
			tasks[i] = task
			replaced = true
			break
		}
	}
	if !replaced {
		tasks = append(tasks, task)
	}
	return l.write(tasks)
}

// Delete removes the record if present. Missing ids are a no-op.
func (l *Local) Delete(_ context.Context, _ domain.Owner, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks, err := l.read()
	if err != nil {
		return err
	}
	kept := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(tasks) {
		return nil
	}
	return l.write(kept)
}

// QueryOverdueIncomplete filters the full local set in memory.
func (l *Local) QueryOverdueIncomplete(_ context.Context, _ domain.Owner, cutoff int64) ([]domain.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks, err := l.read()
	if err != nil {
		return nil, err
	}
	matched := []domain.Task{}
	for _, t := range tasks {
		if !t.Done && t.DueDate < cutoff {
			matched = append(matched, t)
		}
	}
	return matched, nil
}
