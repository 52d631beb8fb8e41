package usecase

import (
	"context"

	"github.com/fastygo/taskplanner/domain"
)

// EventSink receives activity events after a mutation succeeded. Implementations
// may defer delivery; a failed Record never undoes the mutation.
type EventSink interface {
	Record(ctx context.Context, event domain.Event) error
}
