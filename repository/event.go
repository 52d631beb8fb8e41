package repository

import (
	"context"

	"github.com/fastygo/taskplanner/domain"
)

type EventRepository interface {
	Append(ctx context.Context, event domain.Event) error
	ListByTask(ctx context.Context, ownerID, taskID string, limit int) ([]domain.Event, error)
}
