package repository

import (
	"context"

	"github.com/fastygo/taskplanner/domain"
)

// GraphCache stores derived per-owner graphs. A miss returns (nil, false, nil).
type GraphCache interface {
	Get(ctx context.Context, ownerID string) (*domain.Graph, bool, error)
	Set(ctx context.Context, ownerID string, graph *domain.Graph) error
	Invalidate(ctx context.Context, ownerID string) error
}
