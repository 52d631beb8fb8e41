package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/repository"
)

const taskColumns = `id, owner_id, title, description, status, priority, complexity, due_date,
	tags, parent_task, subtasks, dependencies, created_at, updated_at`

// filterClause is shared by List and Count; placeholders $1..$6.
const filterClause = `
	WHERE owner_id = $1
	  AND ($2 = '' OR status = $2)
	  AND ($3 = '' OR priority = $3)
	  AND ($4::timestamptz IS NULL OR due_date >= $4)
	  AND ($5::timestamptz IS NULL OR due_date < $5)
`

// dependencyLockSpace is the first key of the per-owner advisory lock taken by
// AppendDependency.
const dependencyLockSpace = 7301

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 AND id = $2`
	return scanTask(r.pool.QueryRow(ctx, query, ownerID, id))
}

func (r *taskRepository) GetMany(ctx context.Context, ownerID string, ids []string) ([]domain.Task, error) {
	if len(ids) == 0 {
		return []domain.Task{}, nil
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 AND id = ANY($2)`
	found, err := r.queryTasks(ctx, query, ownerID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Task, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	out := make([]domain.Task, 0, len(found))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks` + filterClause + `
	ORDER BY created_at DESC, id DESC
	LIMIT $6 OFFSET $7`
	return r.queryTasks(ctx, query,
		filter.OwnerID,
		string(filter.Status),
		string(filter.Priority),
		nullTimePtr(filter.DueFrom),
		nullTimePtr(filter.DueBefore),
		repository.ClampLimit(filter.Limit),
		max(filter.Offset, 0),
	)
}

func (r *taskRepository) ListAll(ctx context.Context, ownerID string) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`
	return r.queryTasks(ctx, query, ownerID)
}

func (r *taskRepository) Count(ctx context.Context, filter repository.TaskFilter) (int, error) {
	query := `SELECT COUNT(*) FROM tasks` + filterClause
	var n int
	err := r.pool.QueryRow(ctx, query,
		filter.OwnerID,
		string(filter.Status),
		string(filter.Priority),
		nullTimePtr(filter.DueFrom),
		nullTimePtr(filter.DueBefore),
	).Scan(&n)
	return n, err
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if err := insertTask(ctx, r.pool, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	// relation columns are left to the graph operations
	query := `
	UPDATE tasks
	SET title = $3,
		description = $4,
		status = $5,
		priority = $6,
		complexity = $7,
		due_date = $8,
		tags = $9,
		updated_at = clock_timestamp()
	WHERE owner_id = $1 AND id = $2
	RETURNING ` + taskColumns

	updated, err := scanTask(r.pool.QueryRow(ctx, query,
		task.OwnerID,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		int(task.Complexity),
		nullTimePtr(task.DueDate),
		orEmpty(task.Tags),
	))
	if err != nil {
		return err
	}
	*task = *updated
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	query := `DELETE FROM tasks WHERE owner_id = $1 AND id = $2 RETURNING ` + taskColumns
	return scanTask(r.pool.QueryRow(ctx, query, ownerID, id))
}

func (r *taskRepository) CreateSubtask(ctx context.Context, parentID string, subtask *domain.Task) (*domain.Task, error) {
	if subtask == nil {
		return nil, domain.ErrInvalidPayload
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx,
			`SELECT id FROM tasks WHERE owner_id = $1 AND id = $2 FOR UPDATE`,
			subtask.OwnerID, parentID,
		).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrParentTaskNotFound
		}
		if err != nil {
			return err
		}

		subtask.ParentTask = parentID
		if err := insertTask(ctx, tx, subtask); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE tasks
			SET subtasks = array_append(subtasks, $3), updated_at = clock_timestamp()
			WHERE owner_id = $1 AND id = $2`,
			subtask.OwnerID, parentID, subtask.ID,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return subtask, nil
}

// AppendDependency serialises dependency writes per owner with a transaction
// scoped advisory lock, so the cycle check sees every committed edge across
// server instances. Both rows are also locked in id order against other updates.
func (r *taskRepository) AppendDependency(ctx context.Context, ownerID, taskID, dependencyID string, policy domain.CyclePolicy) (*domain.Task, error) {
	var updated *domain.Task
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1::int, hashtext($2))`, dependencyLockSpace, ownerID); err != nil {
			return err
		}
		rows, err := tx.Query(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE owner_id = $1 AND id = ANY($2) ORDER BY id FOR UPDATE`,
			ownerID, []string{taskID, dependencyID},
		)
		if err != nil {
			return err
		}
		locked, err := collectTasks(rows)
		if err != nil {
			return err
		}
		lockedIdx := domain.IndexTasks(locked)
		task, dep := lockedIdx[taskID], lockedIdx[dependencyID]
		if task == nil {
			return domain.ErrTaskNotFound
		}
		if dep == nil {
			return domain.ErrDependencyNotFound
		}
		var idx domain.TaskIndex
		if policy == domain.CycleTransitive {
			rows, err := tx.Query(ctx,
				`SELECT `+taskColumns+` FROM tasks WHERE owner_id = $1`, ownerID)
			if err != nil {
				return err
			}
			all, err := collectTasks(rows)
			if err != nil {
				return err
			}
			idx = domain.IndexTasks(all)
		}
		if err := domain.CheckDependency(idx, task, dep, policy); err != nil {
			return err
		}

		updated, err = scanTask(tx.QueryRow(ctx, `
			UPDATE tasks
			SET dependencies = array_append(dependencies, $3), updated_at = clock_timestamp()
			WHERE owner_id = $1 AND id = $2
			RETURNING `+taskColumns,
			ownerID, taskID, dependencyID,
		))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *taskRepository) PruneReferences(ctx context.Context, ownerID, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET dependencies = array_remove(dependencies, $2),
			subtasks = array_remove(subtasks, $2),
			parent_task = NULLIF(parent_task, $2),
			updated_at = clock_timestamp()
		WHERE owner_id = $1
		  AND ($2 = ANY(dependencies) OR $2 = ANY(subtasks) OR parent_task = $2)`,
		ownerID, id,
	)
	return err
}

func (r *taskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	defer rows.Close()
	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTask(ctx context.Context, q execQuerier, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Normalize()

	const query = `
	INSERT INTO tasks (id, owner_id, title, description, status, priority, complexity, due_date,
		tags, parent_task, subtasks, dependencies)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING created_at, updated_at
	`
	return q.QueryRow(ctx, query,
		task.ID,
		task.OwnerID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		int(task.Complexity),
		nullTimePtr(task.DueDate),
		task.Tags,
		nullString(task.ParentTask),
		task.Subtasks,
		task.Dependencies,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task       domain.Task
		complexity int
		due        *time.Time
		parent     *string
	)

	if err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&complexity,
		&due,
		&task.Tags,
		&parent,
		&task.Subtasks,
		&task.Dependencies,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.Complexity = domain.Complexity(complexity)
	task.DueDate = due
	if parent != nil {
		task.ParentTask = *parent
	}
	task.Normalize()
	return &task, nil
}
