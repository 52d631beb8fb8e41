package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fastygo/taskplanner/domain"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// TaskFilter narrows an owner's task list. Due dates match DueFrom <= due < DueBefore.
type TaskFilter struct {
	OwnerID   string
	Status    domain.Status
	Priority  domain.Priority
	DueFrom   *time.Time
	DueBefore *time.Time
	Limit     int
	Offset    int
}

// Matches reports whether t passes every predicate except paging.
func (f TaskFilter) Matches(t *domain.Task) bool {
	if t == nil || t.OwnerID != f.OwnerID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.DueFrom != nil || f.DueBefore != nil {
		if t.DueDate == nil {
			return false
		}
		if f.DueFrom != nil && t.DueDate.Before(*f.DueFrom) {
			return false
		}
		if f.DueBefore != nil && !t.DueDate.Before(*f.DueBefore) {
			return false
		}
	}
	return true
}

// ClampLimit bounds page sizes to 1..MaxLimit, defaulting to DefaultLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ParseDueDateFilter turns a single date into the 24 hours starting at it and
// "start,end" into the inclusive range between both bounds. Date-only bounds
// ("2025-03-31") cover the whole day; RFC3339 timestamps are also accepted.
func ParseDueDateFilter(value string) (from, before *time.Time, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil, nil
	}
	left, right, isRange := strings.Cut(value, ",")
	lo, _, err := parseDate(strings.TrimSpace(left))
	if err != nil {
		return nil, nil, err
	}
	if !isRange {
		hi := lo.AddDate(0, 0, 1)
		return &lo, &hi, nil
	}
	hi, dayOnly, err := parseDate(strings.TrimSpace(right))
	if err != nil {
		return nil, nil, err
	}
	if dayOnly {
		hi = hi.AddDate(0, 0, 1)
	} else {
		hi = hi.Add(time.Nanosecond)
	}
	if !hi.After(lo) {
		return nil, nil, fmt.Errorf("due date range %q is empty", value)
	}
	return &lo, &hi, nil
}

func parseDate(value string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid date %q", value)
	}
	return t, false, nil
}

// TaskRepository persists tasks. Every lookup is scoped by owner: a task that
// exists under a different owner is reported as domain.ErrTaskNotFound.
type TaskRepository interface {
	GetByID(ctx context.Context, ownerID, id string) (*domain.Task, error)
	// GetMany resolves ids under ownerID, silently skipping ids that do not resolve.
	GetMany(ctx context.Context, ownerID string, ids []string) ([]domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	// ListAll returns every task of the owner, newest first, without paging.
	ListAll(ctx context.Context, ownerID string) ([]domain.Task, error)
	Count(ctx context.Context, filter TaskFilter) (int, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, ownerID, id string) (*domain.Task, error)
	// CreateSubtask inserts subtask under parentID and appends it to the parent's
	// subtask list as one atomic step.
	CreateSubtask(ctx context.Context, parentID string, subtask *domain.Task) (*domain.Task, error)
	// AppendDependency adds dependencyID to the task's dependencies only if the
	// edge passes domain.CheckDependency under policy. The check and the append
	// happen under one write lock scoped to the owner, so concurrent writers
	// cannot close a cycle between them.
	AppendDependency(ctx context.Context, ownerID, taskID, dependencyID string, policy domain.CyclePolicy) (*domain.Task, error)
	// PruneReferences removes id from the owner's dependency and subtask lists
	// and clears it as parent.
	PruneReferences(ctx context.Context, ownerID, id string) error
}
