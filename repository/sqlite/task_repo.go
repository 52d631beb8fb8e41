package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/repository"
)

const taskColumns = `id, owner_id, title, description, status, priority, complexity, due_date,
	tags, parent_task, subtasks, dependencies, created_at, updated_at`

const filterClause = `
	WHERE owner_id = ?
	  AND (? = '' OR status = ?)
	  AND (? = '' OR priority = ?)
	  AND (? IS NULL OR due_date >= ?)
	  AND (? IS NULL OR due_date < ?)
`

type taskRepository struct {
	db    *sql.DB
	clock clock
}

// NewTaskRepository returns a SQLite-backed TaskRepository.
func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) GetByID(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	return getTask(ctx, r.db, ownerID, id)
}

func (r *taskRepository) GetMany(ctx context.Context, ownerID string, ids []string) ([]domain.Task, error) {
	if len(ids) == 0 {
		return []domain.Task{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}
	found, err := queryTasks(ctx, r.db,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(found))
	for _, id := range ids {
		if i := slices.IndexFunc(found, func(t domain.Task) bool { return t.ID == id }); i >= 0 {
			out = append(out, found[i])
		}
	}
	return out, nil
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks` + filterClause + `
	ORDER BY created_at DESC, id DESC
	LIMIT ? OFFSET ?`
	args := append(filterArgs(filter), repository.ClampLimit(filter.Limit), max(filter.Offset, 0))
	return queryTasks(ctx, r.db, query, args...)
}

func (r *taskRepository) ListAll(ctx context.Context, ownerID string) ([]domain.Task, error) {
	return queryTasks(ctx, r.db,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
}

func (r *taskRepository) Count(ctx context.Context, filter repository.TaskFilter) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+filterClause, filterArgs(filter)...).Scan(&n)
	return n, err
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if err := r.insert(ctx, r.db, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, status = ?, priority = ?, complexity = ?,
			due_date = ?, tags = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?`,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		int(task.Complexity),
		nullTime(task.DueDate),
		encodeList(task.Tags),
		formatTime(r.clock.next()),
		task.OwnerID,
		task.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTaskNotFound
	}
	updated, err := getTask(ctx, r.db, task.OwnerID, task.ID)
	if err != nil {
		return err
	}
	*task = *updated
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	var deleted *domain.Task
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE owner_id = ? AND id = ?`, ownerID, id); err != nil {
			return err
		}
		deleted = t
		return nil
	})
	return deleted, err
}

func (r *taskRepository) CreateSubtask(ctx context.Context, parentID string, subtask *domain.Task) (*domain.Task, error) {
	if subtask == nil {
		return nil, domain.ErrInvalidPayload
	}
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		parent, err := getTask(ctx, tx, subtask.OwnerID, parentID)
		if errors.Is(err, domain.ErrTaskNotFound) {
			return domain.ErrParentTaskNotFound
		}
		if err != nil {
			return err
		}
		subtask.ParentTask = parent.ID
		if err := r.insert(ctx, tx, subtask); err != nil {
			return err
		}
		return r.writeRelations(ctx, tx, parent.OwnerID, parent.ID, append(parent.Subtasks, subtask.ID), parent.Dependencies)
	})
	if err != nil {
		return nil, err
	}
	return subtask, nil
}

// AppendDependency relies on the single shared connection to serialise the
// check with the write.
func (r *taskRepository) AppendDependency(ctx context.Context, ownerID, taskID, dependencyID string, policy domain.CyclePolicy) (*domain.Task, error) {
	var updated *domain.Task
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		task, err := getTask(ctx, tx, ownerID, taskID)
		if err != nil {
			return err
		}
		dep, err := getTask(ctx, tx, ownerID, dependencyID)
		if errors.Is(err, domain.ErrTaskNotFound) {
			return domain.ErrDependencyNotFound
		}
		if err != nil {
			return err
		}
		var idx domain.TaskIndex
		if policy == domain.CycleTransitive {
			all, err := queryTasks(ctx, tx, `SELECT `+taskColumns+` FROM tasks WHERE owner_id = ?`, ownerID)
			if err != nil {
				return err
			}
			idx = domain.IndexTasks(all)
		}
		if err := domain.CheckDependency(idx, task, dep, policy); err != nil {
			return err
		}
		if err := r.writeRelations(ctx, tx, ownerID, taskID, task.Subtasks, append(task.Dependencies, dependencyID)); err != nil {
			return err
		}
		updated, err = getTask(ctx, tx, ownerID, taskID)
		return err
	})
	return updated, err
}

func (r *taskRepository) PruneReferences(ctx context.Context, ownerID, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		tasks, err := queryTasks(ctx, tx, `SELECT `+taskColumns+` FROM tasks WHERE owner_id = ?`, ownerID)
		if err != nil {
			return err
		}
		drop := func(v string) bool { return v == id }
		for _, t := range tasks {
			if !t.HasDependency(id) && !t.HasSubtask(id) && t.ParentTask != id {
				continue
			}
			parent := t.ParentTask
			if parent == id {
				parent = ""
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE tasks SET subtasks = ?, dependencies = ?, parent_task = ?, updated_at = ?
				WHERE owner_id = ? AND id = ?`,
				encodeList(slices.DeleteFunc(t.Subtasks, drop)),
				encodeList(slices.DeleteFunc(t.Dependencies, drop)),
				nullString(parent),
				formatTime(r.clock.next()),
				ownerID, t.ID,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *taskRepository) writeRelations(ctx context.Context, ex executor, ownerID, id string, subtasks, deps []string) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE tasks SET subtasks = ?, dependencies = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?`,
		encodeList(subtasks), encodeList(deps), formatTime(r.clock.next()), ownerID, id,
	)
	return err
}

func (r *taskRepository) insert(ctx context.Context, ex executor, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Normalize()
	now := r.clock.next()
	task.CreatedAt, task.UpdatedAt = now, now

	_, err := ex.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.OwnerID,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		int(task.Complexity),
		nullTime(task.DueDate),
		encodeList(task.Tags),
		nullString(task.ParentTask),
		encodeList(task.Subtasks),
		encodeList(task.Dependencies),
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
	)
	return err
}

func filterArgs(f repository.TaskFilter) []any {
	status, priority := string(f.Status), string(f.Priority)
	from, before := nullTime(f.DueFrom), nullTime(f.DueBefore)
	return []any{f.OwnerID, status, status, priority, priority, from, from, before, before}
}

func getTask(ctx context.Context, ex executor, ownerID, id string) (*domain.Task, error) {
	return scanTask(ex.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = ? AND id = ?`, ownerID, id))
}

func queryTasks(ctx context.Context, ex executor, query string, args ...any) ([]domain.Task, error) {
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task                 domain.Task
		complexity           int
		due, parent          sql.NullString
		tags, subtasks, deps string
		createdAt, updatedAt string
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
		&tags,
		&parent,
		&subtasks,
		&deps,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	var err error
	task.Complexity = domain.Complexity(complexity)
	task.ParentTask = parent.String
	if due.Valid {
		d, perr := parseTime(due.String)
		if perr != nil {
			return nil, perr
		}
		task.DueDate = &d
	}
	if task.Tags, err = decodeList(tags); err != nil {
		return nil, err
	}
	if task.Subtasks, err = decodeList(subtasks); err != nil {
		return nil, err
	}
	if task.Dependencies, err = decodeList(deps); err != nil {
		return nil, err
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &task, nil
}
