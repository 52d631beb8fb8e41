// Package memory provides process-lifetime repositories for development and tests.
// Each constructor returns an independent instance; nothing is shared globally.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/repository"
)

type taskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
	now   func() time.Time
}

// NewTaskRepository returns an empty in-memory TaskRepository. All mutations
// run under one write lock, which makes the read-modify-write graph operations atomic.
func NewTaskRepository() repository.TaskRepository {
	return &taskRepository{
		tasks: make(map[string]*domain.Task),
		now:   time.Now,
	}
}

func (r *taskRepository) GetByID(_ context.Context, ownerID, id string) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.lookup(ownerID, id)
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (r *taskRepository) GetMany(_ context.Context, ownerID string, ids []string) ([]domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := r.lookup(ownerID, id); ok {
			out = append(out, *t.Clone())
		}
	}
	return out, nil
}

func (r *taskRepository) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	r.mu.RLock()
	matched := r.match(filter)
	r.mu.RUnlock()

	if filter.Offset >= len(matched) {
		return []domain.Task{}, nil
	}
	matched = matched[max(filter.Offset, 0):]
	if limit := repository.ClampLimit(filter.Limit); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *taskRepository) ListAll(_ context.Context, ownerID string) ([]domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.match(repository.TaskFilter{OwnerID: ownerID}), nil
}

func (r *taskRepository) Count(_ context.Context, filter repository.TaskFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.match(filter)), nil
}

func (r *taskRepository) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insert(task)
	return task, nil
}

func (r *taskRepository) Update(_ context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.lookup(task.OwnerID, task.ID)
	if !ok {
		return domain.ErrTaskNotFound
	}
	next := task.Clone()
	// relations only move through the graph operations
	next.ParentTask = current.ParentTask
	next.Subtasks = slices.Clone(current.Subtasks)
	next.Dependencies = slices.Clone(current.Dependencies)
	next.CreatedAt = current.CreatedAt
	next.Touch(r.tick(current.UpdatedAt))
	r.tasks[next.ID] = next

	*task = *next.Clone()
	return nil
}

func (r *taskRepository) Delete(_ context.Context, ownerID, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.lookup(ownerID, id)
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return t, nil
}

func (r *taskRepository) CreateSubtask(_ context.Context, parentID string, subtask *domain.Task) (*domain.Task, error) {
	if subtask == nil {
		return nil, domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	parent, ok := r.lookup(subtask.OwnerID, parentID)
	if !ok {
		return nil, domain.ErrParentTaskNotFound
	}
	subtask.ParentTask = parent.ID
	r.insert(subtask)
	parent.Subtasks = append(parent.Subtasks, subtask.ID)
	parent.Touch(r.tick(parent.UpdatedAt))
	return subtask, nil
}

func (r *taskRepository) AppendDependency(_ context.Context, ownerID, taskID, dependencyID string, policy domain.CyclePolicy) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.lookup(ownerID, taskID)
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	dep, ok := r.lookup(ownerID, dependencyID)
	if !ok {
		return nil, domain.ErrDependencyNotFound
	}
	var idx domain.TaskIndex
	if policy == domain.CycleTransitive {
		idx = domain.TaskIndex{}
		for _, t := range r.tasks {
			if t.OwnerID == ownerID {
				idx[t.ID] = t
			}
		}
	}
	if err := domain.CheckDependency(idx, task, dep, policy); err != nil {
		return nil, err
	}
	task.Dependencies = append(task.Dependencies, dep.ID)
	task.Touch(r.tick(task.UpdatedAt))
	return task.Clone(), nil
}

func (r *taskRepository) PruneReferences(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.OwnerID != ownerID {
			continue
		}
		changed := false
		if slices.Contains(t.Dependencies, id) {
			t.Dependencies = slices.DeleteFunc(t.Dependencies, func(v string) bool { return v == id })
			changed = true
		}
		if slices.Contains(t.Subtasks, id) {
			t.Subtasks = slices.DeleteFunc(t.Subtasks, func(v string) bool { return v == id })
			changed = true
		}
		if t.ParentTask == id {
			t.ParentTask = ""
			changed = true
		}
		if changed {
			t.Touch(r.tick(t.UpdatedAt))
		}
	}
	return nil
}

func (r *taskRepository) lookup(ownerID, id string) (*domain.Task, bool) {
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, false
	}
	return t, true
}

func (r *taskRepository) insert(task *domain.Task) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Normalize()
	task.CreatedAt = time.Time{}
	task.Touch(r.tick(r.latestCreated()))
	r.tasks[task.ID] = task.Clone()
}

// match returns owner tasks newest first; ties break on id so the order is stable.
func (r *taskRepository) match(filter repository.TaskFilter) []domain.Task {
	out := []domain.Task{}
	for _, t := range r.tasks {
		if filter.Matches(t) {
			out = append(out, *t.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if b.ID > a.ID {
			return 1
		}
		if b.ID < a.ID {
			return -1
		}
		return 0
	})
	return out
}

func (r *taskRepository) latestCreated() time.Time {
	var latest time.Time
	for _, t := range r.tasks {
		if t.CreatedAt.After(latest) {
			latest = t.CreatedAt
		}
	}
	return latest
}

// tick returns now, nudged past prev so timestamps stay strictly increasing
// even when the clock does not advance between calls.
func (r *taskRepository) tick(prev time.Time) time.Time {
	now := r.now()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}
