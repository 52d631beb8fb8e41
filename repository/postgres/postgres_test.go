package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/internal/config"
	pgInfra "github.com/fastygo/taskplanner/internal/infrastructure/postgres"
	"github.com/fastygo/taskplanner/repository"
)

var migrateOnce sync.Once

// newTestPool connects to TEST_DATABASE_URL, applying migrations once, or skips.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	var migrateErr error
	migrateOnce.Do(func() {
		migrateErr = pgInfra.Migrate(config.DatabaseConfig{URL: url, Name: "taskplanner"}, "../../assets/migrations", nil)
	})
	require.NoError(t, migrateErr)

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func createTask(t *testing.T, repo repository.TaskRepository, owner string, in domain.TaskInput) *domain.Task {
	t.Helper()
	created, err := repo.Create(context.Background(), domain.NewTask(owner, in))
	require.NoError(t, err)
	return created
}

func TestTaskRepositoryFiltersAndOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestPool(t))
	owner := uuid.NewString()
	march := time.Date(2030, time.March, 10, 12, 0, 0, 0, time.UTC)
	april := time.Date(2030, time.April, 2, 9, 0, 0, 0, time.UTC)

	first := createTask(t, repo, owner, domain.TaskInput{Title: "Write schema", DueDate: &march, Priority: domain.PriorityHigh})
	second := createTask(t, repo, owner, domain.TaskInput{Title: "Write handlers", DueDate: &april})
	third := createTask(t, repo, owner, domain.TaskInput{Title: "Write docs", Status: domain.StatusCompleted})
	createTask(t, repo, uuid.NewString(), domain.TaskInput{Title: "Someone else"})

	all, err := repo.List(ctx, repository.TaskFilter{OwnerID: owner})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	from, before, err := repository.ParseDueDateFilter("2030-03-01,2030-03-31")
	require.NoError(t, err)
	inMarch, err := repo.List(ctx, repository.TaskFilter{OwnerID: owner, DueFrom: from, DueBefore: before})
	require.NoError(t, err)
	require.Len(t, inMarch, 1)
	assert.Equal(t, first.ID, inMarch[0].ID)

	completed, err := repo.Count(ctx, repository.TaskFilter{OwnerID: owner, Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 1, completed)

	high, err := repo.Count(ctx, repository.TaskFilter{OwnerID: owner, Priority: domain.PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, 1, high)

	page, err := repo.List(ctx, repository.TaskFilter{OwnerID: owner, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)
}

func TestCreateSubtaskIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestPool(t))
	owner := uuid.NewString()
	parent := createTask(t, repo, owner, domain.TaskInput{Title: "Parent task"})

	child, err := repo.CreateSubtask(ctx, parent.ID, domain.NewTask(owner, domain.TaskInput{Title: "Child task"}))
	require.NoError(t, err)
	assert.Equal(t, parent.ID, child.ParentTask)

	reloaded, err := repo.GetByID(ctx, owner, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{child.ID}, reloaded.Subtasks)

	_, err = repo.CreateSubtask(ctx, "missing", domain.NewTask(owner, domain.TaskInput{Title: "Orphan task"}))
	assert.ErrorIs(t, err, domain.ErrParentTaskNotFound)

	foreign := domain.NewTask(uuid.NewString(), domain.TaskInput{Title: "Foreign child"})
	_, err = repo.CreateSubtask(ctx, parent.ID, foreign)
	assert.ErrorIs(t, err, domain.ErrParentTaskNotFound)

	count, err := repo.Count(ctx, repository.TaskFilter{OwnerID: owner})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAppendDependencyRules(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestPool(t))
	owner := uuid.NewString()
	a := createTask(t, repo, owner, domain.TaskInput{Title: "Task A"})
	b := createTask(t, repo, owner, domain.TaskInput{Title: "Task B"})
	c := createTask(t, repo, owner, domain.TaskInput{Title: "Task C"})

	updated, err := repo.AppendDependency(ctx, owner, a.ID, b.ID, domain.CycleTransitive)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, updated.Dependencies)

	_, err = repo.AppendDependency(ctx, owner, a.ID, b.ID, domain.CycleTransitive)
	assert.ErrorIs(t, err, domain.ErrDuplicateDependency)
	_, err = repo.AppendDependency(ctx, owner, b.ID, a.ID, domain.CycleDirect)
	assert.ErrorIs(t, err, domain.ErrCircularDependency)
	_, err = repo.AppendDependency(ctx, owner, a.ID, a.ID, domain.CycleDirect)
	assert.ErrorIs(t, err, domain.ErrSelfDependency)
	_, err = repo.AppendDependency(ctx, owner, a.ID, "missing", domain.CycleDirect)
	assert.ErrorIs(t, err, domain.ErrDependencyNotFound)
	_, err = repo.AppendDependency(ctx, uuid.NewString(), a.ID, b.ID, domain.CycleDirect)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	_, err = repo.AppendDependency(ctx, owner, b.ID, c.ID, domain.CycleTransitive)
	require.NoError(t, err)
	_, err = repo.AppendDependency(ctx, owner, c.ID, a.ID, domain.CycleTransitive)
	assert.ErrorIs(t, err, domain.ErrCircularDependency)
}

// Two pools stand in for two server instances sharing the database.
func TestAppendDependencyAcrossPoolsCannotCloseCycle(t *testing.T) {
	ctx := context.Background()
	first := NewTaskRepository(newTestPool(t))
	second := NewTaskRepository(newTestPool(t))
	owner := uuid.NewString()
	a := createTask(t, first, owner, domain.TaskInput{Title: "Task A"})
	b := createTask(t, first, owner, domain.TaskInput{Title: "Task B"})
	c := createTask(t, first, owner, domain.TaskInput{Title: "Task C"})
	_, err := first.AppendDependency(ctx, owner, a.ID, b.ID, domain.CycleTransitive)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = first.AppendDependency(ctx, owner, b.ID, c.ID, domain.CycleTransitive)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = second.AppendDependency(ctx, owner, c.ID, a.ID, domain.CycleTransitive)
	}()
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrCircularDependency)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestPruneReferencesRemovesIds(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestPool(t))
	owner := uuid.NewString()
	parent := createTask(t, repo, owner, domain.TaskInput{Title: "Parent task"})
	dependent := createTask(t, repo, owner, domain.TaskInput{Title: "Dependent task"})
	child, err := repo.CreateSubtask(ctx, parent.ID, domain.NewTask(owner, domain.TaskInput{Title: "Child task"}))
	require.NoError(t, err)
	_, err = repo.AppendDependency(ctx, owner, dependent.ID, parent.ID, domain.CycleDirect)
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, owner, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, deleted.ID)

	stale, err := repo.GetByID(ctx, owner, dependent.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{parent.ID}, stale.Dependencies)

	require.NoError(t, repo.PruneReferences(ctx, owner, parent.ID))
	pruned, err := repo.GetByID(ctx, owner, dependent.ID)
	require.NoError(t, err)
	assert.Empty(t, pruned.Dependencies)
	orphan, err := repo.GetByID(ctx, owner, child.ID)
	require.NoError(t, err)
	assert.Empty(t, orphan.ParentTask)

	_, err = repo.Delete(ctx, owner, parent.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestEventRepositoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(newTestPool(t))
	owner, task := uuid.NewString(), uuid.NewString()
	now := time.Now().UTC()

	require.NoError(t, repo.Append(ctx, domain.Event{ID: uuid.NewString(), OwnerID: owner, TaskID: task, Name: domain.EventTaskCreated, CreatedAt: now}))
	latest := domain.Event{ID: uuid.NewString(), OwnerID: owner, TaskID: task, Name: domain.EventTaskUpdated,
		Metadata: map[string]string{"from": "pending"}, CreatedAt: now.Add(time.Second)}
	require.NoError(t, repo.Append(ctx, latest))

	events, err := repo.ListByTask(ctx, owner, task, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, latest.ID, events[0].ID)
	assert.Equal(t, "pending", events[0].Metadata["from"])
}
