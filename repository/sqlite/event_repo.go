package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/repository"
)

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) repository.EventRepository {
	return &eventRepository{db: db}
}

// Append ignores an event id that is already stored.
func (r *eventRepository) Append(ctx context.Context, event domain.Event) error {
	created := event.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var payload any
	if len(event.Payload) > 0 {
		payload = string(event.Payload)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_events (id, task_id, owner_id, name, payload, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, event.TaskID, event.OwnerID, event.Name, payload, encodeMap(event.Metadata), formatTime(created),
	)
	return err
}

func (r *eventRepository) ListByTask(ctx context.Context, ownerID, taskID string, limit int) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, owner_id, name, payload, metadata, created_at
		FROM task_events
		WHERE owner_id = ? AND task_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`,
		ownerID, taskID, repository.ClampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var (
			e                 domain.Event
			payload, metadata sql.NullString
			createdAt         string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.OwnerID, &e.Name, &payload, &metadata, &createdAt); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		if metadata.Valid {
			_ = json.Unmarshal([]byte(metadata.String), &e.Metadata)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
