package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskplanner/domain"
	infra "github.com/fastygo/taskplanner/internal/infrastructure/sqlite"
	"github.com/fastygo/taskplanner/repository"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := infra.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func create(t *testing.T, repo repository.TaskRepository, owner string, in domain.TaskInput) *domain.Task {
	t.Helper()
	created, err := repo.Create(context.Background(), domain.NewTask(owner, in))
	require.NoError(t, err)
	return created
}

func TestTaskRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(openDB(t))
	due := time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)
	created := create(t, repo, "u1", domain.TaskInput{
		Title:      "Design schema",
		Priority:   domain.PriorityHigh,
		Complexity: 6,
		DueDate:    &due,
		Tags:       []string{"db", "design"},
	})

	got, err := repo.GetByID(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Design schema", got.Title)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Equal(t, domain.Complexity(6), got.Complexity)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))
	assert.Equal(t, []string{"db", "design"}, got.Tags)
	assert.Empty(t, got.Dependencies)

	_, err = repo.GetByID(ctx, "u2", created.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestTaskGraphOperations(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(openDB(t))
	a := create(t, repo, "u1", domain.TaskInput{Title: "Task A"})
	b := create(t, repo, "u1", domain.TaskInput{Title: "Task B"})

	updated, err := repo.AppendDependency(ctx, "u1", b.ID, a.ID, domain.CycleDirect)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, updated.Dependencies)

	_, err = repo.AppendDependency(ctx, "u1", b.ID, a.ID, domain.CycleDirect)
	assert.ErrorIs(t, err, domain.ErrDuplicateDependency)
	_, err = repo.AppendDependency(ctx, "u1", a.ID, b.ID, domain.CycleDirect)
	assert.ErrorIs(t, err, domain.ErrCircularDependency)
	_, err = repo.AppendDependency(ctx, "u1", a.ID, "missing", domain.CycleDirect)
	assert.ErrorIs(t, err, domain.ErrDependencyNotFound)

	child, err := repo.CreateSubtask(ctx, a.ID, domain.NewTask("u1", domain.TaskInput{Title: "Child"}))
	require.NoError(t, err)
	assert.Equal(t, a.ID, child.ParentTask)
	_, err = repo.CreateSubtask(ctx, a.ID, domain.NewTask("u2", domain.TaskInput{Title: "Intruder"}))
	assert.ErrorIs(t, err, domain.ErrParentTaskNotFound)

	parent, err := repo.GetByID(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{child.ID}, parent.Subtasks)

	many, err := repo.GetMany(ctx, "u1", []string{child.ID, "gone", b.ID})
	require.NoError(t, err)
	require.Len(t, many, 2)
	assert.Equal(t, child.ID, many[0].ID)
	assert.Equal(t, b.ID, many[1].ID)

	deleted, err := repo.Delete(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, deleted.ID)
	require.NoError(t, repo.PruneReferences(ctx, "u1", a.ID))

	b2, err := repo.GetByID(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Empty(t, b2.Dependencies)
	orphan, err := repo.GetByID(ctx, "u1", child.ID)
	require.NoError(t, err)
	assert.Empty(t, orphan.ParentTask)
}

func TestTaskUpdateKeepsRelations(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(openDB(t))
	a := create(t, repo, "u1", domain.TaskInput{Title: "Task A"})
	b := create(t, repo, "u1", domain.TaskInput{Title: "Task B"})
	_, err := repo.AppendDependency(ctx, "u1", b.ID, a.ID, domain.CycleDirect)
	require.NoError(t, err)

	stale := b.Clone()
	stale.Status = domain.StatusCompleted
	stale.Dependencies = nil
	require.NoError(t, repo.Update(ctx, stale))
	assert.Equal(t, []string{a.ID}, stale.Dependencies)
	assert.Equal(t, domain.StatusCompleted, stale.Status)

	missing := &domain.Task{ID: "nope", OwnerID: "u1", Title: "Ghost"}
	assert.ErrorIs(t, repo.Update(ctx, missing), domain.ErrTaskNotFound)
}

func TestTaskListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(openDB(t))
	day := func(d int) *time.Time {
		v := time.Date(2026, 3, d, 9, 0, 0, 0, time.UTC)
		return &v
	}
	first := create(t, repo, "u1", domain.TaskInput{Title: "Due tenth", DueDate: day(10)})
	second := create(t, repo, "u1", domain.TaskInput{Title: "Due twelfth", DueDate: day(12), Status: domain.StatusCompleted})
	create(t, repo, "u1", domain.TaskInput{Title: "No due date"})
	create(t, repo, "u2", domain.TaskInput{Title: "Foreign", DueDate: day(10)})

	all, err := repo.List(ctx, repository.TaskFilter{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "No due date", all[0].Title)
	assert.Equal(t, first.ID, all[2].ID)

	completed, err := repo.List(ctx, repository.TaskFilter{OwnerID: "u1", Status: domain.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, second.ID, completed[0].ID)

	from, before, err := repository.ParseDueDateFilter("2026-03-10")
	require.NoError(t, err)
	n, err := repo.Count(ctx, repository.TaskFilter{OwnerID: "u1", DueFrom: from, DueBefore: before})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	from, before, err = repository.ParseDueDateFilter("2026-03-10,2026-03-12")
	require.NoError(t, err)
	n, err = repo.Count(ctx, repository.TaskFilter{OwnerID: "u1", DueFrom: from, DueBefore: before})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	page, err := repo.List(ctx, repository.TaskFilter{OwnerID: "u1", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(openDB(t))
	user := &domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", PasswordHash: "hash", Role: domain.RoleUser, Status: domain.UserStatusActive}
	require.NoError(t, repo.Create(ctx, user))
	assert.ErrorIs(t, repo.Create(ctx, &domain.User{ID: "u2", Email: "ADA@example.com"}), domain.ErrEmailTaken)

	got, err := repo.GetByEmail(ctx, "Ada@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	got.Name = "Ada L."
	got.PasswordHash = ""
	require.NoError(t, repo.Upsert(ctx, got))
	reloaded, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", reloaded.Name)
	assert.Equal(t, "hash", reloaded.PasswordHash)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestEventRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(openDB(t))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Append(ctx, domain.Event{ID: "e1", OwnerID: "u1", TaskID: "t1", Name: domain.EventTaskCreated, CreatedAt: base}))
	require.NoError(t, repo.Append(ctx, domain.Event{
		ID: "e2", OwnerID: "u1", TaskID: "t1", Name: domain.EventTaskUpdated,
		Payload: []byte(`{"id":"t1"}`), Metadata: map[string]string{"k": "v"}, CreatedAt: base.Add(time.Second),
	}))
	require.NoError(t, repo.Append(ctx, domain.Event{ID: "e1", OwnerID: "u1", TaskID: "t1", CreatedAt: base}))

	events, err := repo.ListByTask(ctx, "u1", "t1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].ID)
	assert.JSONEq(t, `{"id":"t1"}`, string(events[0].Payload))
	assert.Equal(t, "v", events[0].Metadata["k"])
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tasks.db")
	db, err := infra.Open(context.Background(), path, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.FileExists(t, path)
}

func TestAppendDependencyTransitivePolicy(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(openDB(t))
	a := create(t, repo, "u1", domain.TaskInput{Title: "Task A"})
	b := create(t, repo, "u1", domain.TaskInput{Title: "Task B"})
	c := create(t, repo, "u1", domain.TaskInput{Title: "Task C"})
	_, err := repo.AppendDependency(ctx, "u1", a.ID, b.ID, domain.CycleTransitive)
	require.NoError(t, err)
	_, err = repo.AppendDependency(ctx, "u1", b.ID, c.ID, domain.CycleTransitive)
	require.NoError(t, err)

	_, err = repo.AppendDependency(ctx, "u1", c.ID, a.ID, domain.CycleTransitive)
	assert.ErrorIs(t, err, domain.ErrCircularDependency)
	updated, err := repo.AppendDependency(ctx, "u1", c.ID, a.ID, domain.CycleDirect)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, updated.Dependencies)
}
