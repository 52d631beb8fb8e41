package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/repository"
)

type graphCache struct {
	client redislib.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewGraphCache stores rendered per-owner graphs as JSON with a short TTL.
// Writes invalidate the entry, the TTL only bounds staleness after a missed invalidation.
func NewGraphCache(client redislib.UniversalClient, ttl time.Duration) repository.GraphCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &graphCache{
		client: client,
		prefix: "taskplanner:graph:",
		ttl:    ttl,
	}
}

func (c *graphCache) Get(ctx context.Context, ownerID string) (*domain.Graph, bool, error) {
	raw, err := c.client.Get(ctx, c.key(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var g domain.Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		// a corrupt entry is treated as a miss and overwritten on the next build
		return nil, false, nil
	}
	return &g, true, nil
}

func (c *graphCache) Set(ctx context.Context, ownerID string, graph *domain.Graph) error {
	if graph == nil {
		return nil
	}
	payload, err := json.Marshal(graph)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(ownerID), payload, c.ttl).Err()
}

func (c *graphCache) Invalidate(ctx context.Context, ownerID string) error {
	return c.client.Del(ctx, c.key(ownerID)).Err()
}

func (c *graphCache) key(ownerID string) string {
	return c.prefix + ownerID
}
