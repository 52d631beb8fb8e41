package memory

import (
	"context"
	"sync"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/repository"
)

type eventRepository struct {
	mu     sync.RWMutex
	events []domain.Event
}

func NewEventRepository() repository.EventRepository {
	return &eventRepository{}
}

func (r *eventRepository) Append(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == event.ID {
			return nil
		}
	}
	r.events = append(r.events, event)
	return nil
}

// ListByTask returns the newest events first.
func (r *eventRepository) ListByTask(_ context.Context, ownerID, taskID string, limit int) ([]domain.Event, error) {
	limit = repository.ClampLimit(limit)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Event{}
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.events[i]
		if e.OwnerID == ownerID && e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}
