package domain

import (
	"encoding/json"
	"time"
)

// Event names recorded for task mutations.
const (
	EventTaskCreated       = "task.created"
	EventTaskUpdated       = "task.updated"
	EventTaskStatusChanged = "task.status_changed"
	EventTaskDeleted       = "task.deleted"
	EventSubtaskAdded      = "task.subtask_added"
	EventDependencyAdded   = "task.dependency_added"
)

// Event is an activity record describing a change applied to a task.
type Event struct {
	ID        string            `json:"id"`
	TaskID    string            `json:"task_id"`
	OwnerID   string            `json:"owner_id"`
	Name      string            `json:"name"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
