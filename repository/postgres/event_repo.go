package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/repository"
)

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a Postgres-backed task activity log.
func NewEventRepository(pool *pgxpool.Pool) repository.EventRepository {
	return &eventRepository{pool: pool}
}

// Append is idempotent on event id so a replayed outbox batch is harmless.
func (r *eventRepository) Append(ctx context.Context, event domain.Event) error {
	const query = `
	INSERT INTO task_events (id, task_id, owner_id, name, payload, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
	ON CONFLICT (id) DO NOTHING
	`

	var payload []byte
	if len(event.Payload) > 0 {
		payload = event.Payload
	}

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.TaskID,
		event.OwnerID,
		event.Name,
		payload,
		marshalMap(event.Metadata),
		nullTime(event.CreatedAt),
	)
	return err
}

func (r *eventRepository) ListByTask(ctx context.Context, ownerID, taskID string, limit int) ([]domain.Event, error) {
	const query = `
	SELECT id, task_id, owner_id, name, payload, metadata, created_at
	FROM task_events
	WHERE owner_id = $1 AND task_id = $2
	ORDER BY created_at DESC, id DESC
	LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, ownerID, taskID, repository.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var (
		event    domain.Event
		payload  []byte
		metadata []byte
	)
	if err := row.Scan(
		&event.ID,
		&event.TaskID,
		&event.OwnerID,
		&event.Name,
		&payload,
		&metadata,
		&event.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		event.Payload = json.RawMessage(payload)
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &event.Metadata)
	}
	return &event, nil
}
