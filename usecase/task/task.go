package task

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/pkg/logger"
	"github.com/fastygo/taskplanner/repository"
	"github.com/fastygo/taskplanner/usecase"
)

const graphBuildTimeout = 30 * time.Second

// Config tunes the graph rules enforced by the use case.
type Config struct {
	CyclePolicy       domain.CyclePolicy
	PruneOnDelete     bool
	OverloadThreshold int
}

// UseCase is the task graph store: it owns every task mutation. Relation
// invariants that depend on other tasks are enforced by the repository inside
// the write that creates the relation.
type UseCase struct {
	tasks  repository.TaskRepository
	events usecase.EventSink
	cache  repository.GraphCache
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	graphs      singleflight.Group
	generations graphGenerations
}

// New wires the use case. events and cache are optional.
func New(tasks repository.TaskRepository, events usecase.EventSink, cache repository.GraphCache, cfg Config, log *zap.Logger) *UseCase {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.CyclePolicy.IsValid() {
		cfg.CyclePolicy = domain.CycleTransitive
	}
	if cfg.OverloadThreshold <= 0 {
		cfg.OverloadThreshold = domain.DefaultOverloadThreshold
	}
	return &UseCase{
		tasks:  tasks,
		events: events,
		cache:  cache,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}
}

func (uc *UseCase) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	return uc.tasks.List(ctx, filter)
}

func (uc *UseCase) Count(ctx context.Context, filter repository.TaskFilter) (int, error) {
	return uc.tasks.Count(ctx, filter)
}

func (uc *UseCase) Get(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	return uc.tasks.GetByID(ctx, ownerID, id)
}

func (uc *UseCase) Create(ctx context.Context, ownerID string, in domain.TaskInput) (*domain.Task, error) {
	if err := in.Validate(time.Time{}); err != nil {
		return nil, err
	}
	created, err := uc.tasks.Create(ctx, domain.NewTask(ownerID, in))
	if err != nil {
		return nil, err
	}
	uc.changed(ctx, domain.EventTaskCreated, created, nil)
	return created, nil
}

func (uc *UseCase) Update(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	current, err := uc.tasks.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	previous := current.Status
	patch.Apply(current)
	if err := uc.tasks.Update(ctx, current); err != nil {
		return nil, err
	}

	name := domain.EventTaskUpdated
	var meta map[string]string
	if patch.Status != nil && *patch.Status != previous {
		meta = map[string]string{"from": string(previous), "to": string(current.Status)}
		if (domain.TaskPatch{Status: patch.Status}) == patch {
			name = domain.EventTaskStatusChanged
		}
	}
	uc.changed(ctx, name, current, meta)
	return current, nil
}

func (uc *UseCase) UpdateStatus(ctx context.Context, ownerID, id string, status domain.Status) (*domain.Task, error) {
	if status == "" {
		return nil, domain.ValidationError([]domain.FieldError{{Field: "status", Message: "Status field is required"}})
	}
	return uc.Update(ctx, ownerID, id, domain.TaskPatch{Status: &status})
}

// Delete removes the task. References held by other tasks stay in place unless
// pruning is enabled; readers treat them as dangling.
func (uc *UseCase) Delete(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	deleted, err := uc.tasks.Delete(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if uc.cfg.PruneOnDelete {
		if err := uc.tasks.PruneReferences(ctx, ownerID, id); err != nil {
			uc.log(ctx).Warn("failed to prune references", zap.String("task_id", id), zap.Error(err))
		}
	}
	uc.changed(ctx, domain.EventTaskDeleted, deleted, nil)
	return deleted, nil
}

func (uc *UseCase) AddSubtask(ctx context.Context, ownerID, parentID string, in domain.TaskInput) (*domain.Task, error) {
	if err := in.Validate(time.Time{}); err != nil {
		return nil, err
	}
	subtask, err := uc.tasks.CreateSubtask(ctx, parentID, domain.NewTask(ownerID, in))
	if err != nil {
		return nil, err
	}
	uc.changed(ctx, domain.EventSubtaskAdded, subtask, map[string]string{"parent_task": parentID})
	return subtask, nil
}

// AddDependency records that taskID cannot start before dependencyID completes.
// The repository runs the self, cycle and duplicate checks under its write lock.
func (uc *UseCase) AddDependency(ctx context.Context, ownerID, taskID, dependencyID string) (*domain.Task, error) {
	updated, err := uc.tasks.AppendDependency(ctx, ownerID, taskID, dependencyID, uc.cfg.CyclePolicy)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeConflict) {
			uc.log(ctx).Debug("dependency rejected",
				zap.String("task_id", taskID),
				zap.String("dependency_id", dependencyID),
				zap.Error(err))
		}
		return nil, err
	}
	uc.changed(ctx, domain.EventDependencyAdded, updated, map[string]string{"dependency_id": dependencyID})
	return updated, nil
}

// IsBlocked reports whether any resolvable dependency of the task is not completed.
func (uc *UseCase) IsBlocked(ctx context.Context, ownerID, id string) (bool, error) {
	blocking, err := uc.BlockingTasks(ctx, ownerID, id)
	if err != nil {
		return false, err
	}
	return len(blocking) > 0, nil
}

// BlockingTasks lists the unfinished dependencies. Dangling ids are skipped.
func (uc *UseCase) BlockingTasks(ctx context.Context, ownerID, id string) ([]domain.Task, error) {
	deps, err := uc.Dependencies(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	out := []domain.Task{}
	for _, d := range deps {
		if !d.IsCompleted() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (uc *UseCase) Dependencies(ctx context.Context, ownerID, id string) ([]domain.Task, error) {
	t, err := uc.tasks.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return uc.tasks.GetMany(ctx, ownerID, t.Dependencies)
}

func (uc *UseCase) Subtasks(ctx context.Context, ownerID, id string) ([]domain.Task, error) {
	t, err := uc.tasks.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return uc.tasks.GetMany(ctx, ownerID, t.Subtasks)
}

// Graph returns the owner's dependency graph, served from cache when possible.
// Concurrent misses share one build per owner generation; the build outlives
// the caller's cancellation so waiters are not failed by it.
func (uc *UseCase) Graph(ctx context.Context, ownerID string) (*domain.Graph, error) {
	if uc.cache != nil {
		if g, ok, err := uc.cache.Get(ctx, ownerID); err != nil {
			uc.log(ctx).Warn("graph cache read failed", zap.Error(err))
		} else if ok {
			return g, nil
		}
	}

	gen := uc.generations.current(ownerID)
	key := ownerID + ":" + strconv.FormatUint(gen, 10)
	v, err, _ := uc.graphs.Do(key, func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), graphBuildTimeout)
		defer cancel()
		all, err := uc.tasks.ListAll(buildCtx, ownerID)
		if err != nil {
			return nil, err
		}
		g := domain.BuildGraph(all)
		if uc.cache != nil {
			stored := uc.generations.ifCurrent(ownerID, gen, func() {
				if err := uc.cache.Set(buildCtx, ownerID, &g); err != nil {
					uc.log(buildCtx).Warn("graph cache write failed", zap.Error(err))
				}
			})
			if !stored {
				uc.log(buildCtx).Debug("graph changed during build, not cached", zap.String("owner_id", ownerID))
			}
		}
		return &g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Graph), nil
}

// Calendar buckets the owner's tasks by due month for year, each bucket sorted by mode.
func (uc *UseCase) Calendar(ctx context.Context, ownerID string, year int, mode domain.SortMode) ([]domain.MonthGroup, error) {
	all, err := uc.tasks.ListAll(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if year == 0 {
		year = uc.now().Year()
	}
	groups := domain.GroupByMonth(all, year, uc.cfg.OverloadThreshold)
	for i := range groups {
		groups[i].Tasks = domain.SortTasks(groups[i].Tasks, mode)
	}
	return groups, nil
}

func (uc *UseCase) Stats(ctx context.Context, ownerID string) (domain.Stats, error) {
	all, err := uc.tasks.ListAll(ctx, ownerID)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.ComputeStats(all), nil
}

// changed runs the post-mutation side effects. Neither failure is reported to the caller.
func (uc *UseCase) changed(ctx context.Context, name string, t *domain.Task, meta map[string]string) {
	uc.generations.bump(t.OwnerID)
	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx, t.OwnerID); err != nil {
			uc.log(ctx).Warn("graph cache invalidation failed", zap.String("owner_id", t.OwnerID), zap.Error(err))
		}
	}
	if uc.events == nil {
		return
	}
	payload, err := json.Marshal(t)
	if err != nil {
		uc.log(ctx).Error("failed to encode task event", zap.Error(err))
		return
	}
	event := domain.Event{
		ID:        uuid.NewString(),
		TaskID:    t.ID,
		OwnerID:   t.OwnerID,
		Name:      name,
		Payload:   payload,
		Metadata:  meta,
		CreatedAt: uc.now(),
	}
	if err := uc.events.Record(ctx, event); err != nil {
		uc.log(ctx).Error("failed to record task event", zap.String("event", name), zap.Error(err))
	}
}

func (uc *UseCase) log(ctx context.Context) *zap.Logger {
	return logger.WithRequestID(ctx, uc.logger)
}
