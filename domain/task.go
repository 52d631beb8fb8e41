package domain

import (
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusDeferred   Status = "deferred"
)

// Statuses lists every accepted status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusDeferred}

func (s Status) IsValid() bool {
	return slices.Contains(Statuses, s)
}

// Priority ranks a task for planning views.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) IsValid() bool {
	return slices.Contains(Priorities, p)
}

// Rank orders priorities from most to least urgent (high=1). Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 999
	}
}

const (
	TitleMinLength       = 3
	TitleMaxLength       = 100
	DescriptionMaxLength = 500
)

// Task represents a user-owned unit of work together with its graph relations.
type Task struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       Status     `json:"status"`
	Priority     Priority   `json:"priority"`
	Complexity   Complexity `json:"complexity"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	Tags         []string   `json:"tags"`
	ParentTask   string     `json:"parent_task,omitempty"`
	Subtasks     []string   `json:"subtasks"`
	Dependencies []string   `json:"dependencies"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusCompleted
}

func (t *Task) HasDependency(id string) bool {
	return t != nil && slices.Contains(t.Dependencies, id)
}

func (t *Task) HasSubtask(id string) bool {
	return t != nil && slices.Contains(t.Subtasks, id)
}

// Normalize applies creation defaults and guarantees non-nil relation slices.
func (t *Task) Normalize() {
	if t == nil {
		return
	}
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Complexity == 0 {
		t.Complexity = DefaultComplexity
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Subtasks == nil {
		t.Subtasks = []string{}
	}
	if t.Dependencies == nil {
		t.Dependencies = []string{}
	}
}

// Clone returns a deep copy so stores never share slices with callers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := *t
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	out.Tags = slices.Clone(t.Tags)
	out.Subtasks = slices.Clone(t.Subtasks)
	out.Dependencies = slices.Clone(t.Dependencies)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if out.Subtasks == nil {
		out.Subtasks = []string{}
	}
	if out.Dependencies == nil {
		out.Dependencies = []string{}
	}
	return &out
}

// Touch refreshes UpdatedAt and seeds CreatedAt on first write.
func (t *Task) Touch(now time.Time) {
	if t == nil {
		return
	}
	t.UpdatedAt = now
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
}

// TaskInput carries the caller-supplied fields for a new task.
type TaskInput struct {
	Title       string
	Description string
	Status      Status
	Priority    Priority
	Complexity  Complexity
	DueDate     *time.Time
	Tags        []string
}

// NewTask builds an unsaved task owned by ownerID from the input.
func NewTask(ownerID string, in TaskInput) *Task {
	t := &Task{
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		Complexity:  in.Complexity,
		DueDate:     in.DueDate,
		Tags:        slices.Clone(in.Tags),
	}
	t.Normalize()
	return t
}

// TaskPatch is a partial update; nil fields are left untouched.
// Relations are not patchable: they change only through the graph operations.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	Complexity  *Complexity
	DueDate     *time.Time
	ClearDue    bool
	Tags        *[]string
}

func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.Complexity == nil && p.DueDate == nil && !p.ClearDue && p.Tags == nil
}

// Apply merges the patch into t.
func (p TaskPatch) Apply(t *Task) {
	if t == nil {
		return
	}
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Status != nil && *p.Status != "" {
		t.Status = *p.Status
	}
	if p.Priority != nil && *p.Priority != "" {
		t.Priority = *p.Priority
	}
	if p.Complexity != nil && *p.Complexity != 0 {
		t.Complexity = *p.Complexity
	}
	switch {
	case p.ClearDue:
		t.DueDate = nil
	case p.DueDate != nil:
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.Tags != nil {
		t.Tags = slices.Clone(*p.Tags)
		if t.Tags == nil {
			t.Tags = []string{}
		}
	}
}
