package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskplanner/api/transport"
	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/pkg/httpcontext"
	taskUC "github.com/fastygo/taskplanner/usecase/task"
)

type TaskHandler struct {
	baseHandler
	uc  *taskUC.UseCase
	now func() time.Time
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		now:         time.Now,
	}
}

// @Summary List tasks
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}
	filter, err := transport.ParseTaskFilter(ownerID, ctx.QueryArgs())
	if err != nil {
		h.respondError(ctx, nil, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.List(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondList(ctx, tasks, len(tasks))
}

// @Summary Count tasks matching the list filters
// @Tags tasks
// @Router /api/v1/tasks/count [get]
func (h *TaskHandler) CountTasks(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}
	filter, err := transport.ParseTaskFilter(ownerID, ctx.QueryArgs())
	if err != nil {
		h.respondError(ctx, nil, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	n, err := h.uc.Count(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewList(nil, n))
}

// @Summary Get task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.Get(stdCtx, ownerID, pathID(ctx))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}
	in, ok := h.parseInput(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.Create(stdCtx, ownerID, in)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Update task
// @Tags tasks
// @Router /api/v1/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}
	req, err := transport.DecodeTaskRequest(ctx.PostBody())
	if err != nil {
		h.badRequest(ctx, "invalid payload")
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		h.respondError(ctx, nil, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.Update(stdCtx, ownerID, pathID(ctx), patch)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Update task status
// @Tags tasks
// @Router /api/v1/tasks/{id}/status [put]
func (h *TaskHandler) UpdateStatus(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}
	var req transport.StatusRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.badRequest(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.UpdateStatus(stdCtx, ownerID, pathID(ctx), domain.Status(req.Status))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	deleted, err := h.uc.Delete(stdCtx, ownerID, pathID(ctx))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	env := transport.NewMessage("Task removed")
	env.Data = deleted
	h.respondJSON(ctx, http.StatusOK, env)
}

// @Summary Create a subtask under the task
// @Tags tasks
// @Router /api/v1/tasks/{id}/subtasks [post]
func (h *TaskHandler) AddSubtask(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}
	in, ok := h.parseInput(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	subtask, err := h.uc.AddSubtask(stdCtx, ownerID, pathID(ctx), in)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, subtask)
}

// @Summary List subtasks
// @Tags tasks
// @Router /api/v1/tasks/{id}/subtasks [get]
func (h *TaskHandler) GetSubtasks(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.Subtasks(stdCtx, ownerID, pathID(ctx))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondList(ctx, tasks, len(tasks))
}

// @Summary Add a dependency to the task
// @Tags tasks
// @Router /api/v1/tasks/{id}/dependencies [post]
func (h *TaskHandler) AddDependency(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}
	var req transport.DependencyRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.badRequest(ctx, "invalid payload")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(ctx, nil, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.AddDependency(stdCtx, ownerID, pathID(ctx), req.DependencyID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary List dependencies
// @Tags tasks
// @Router /api/v1/tasks/{id}/dependencies [get]
func (h *TaskHandler) GetDependencies(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.Dependencies(stdCtx, ownerID, pathID(ctx))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondList(ctx, tasks, len(tasks))
}

// @Summary Report whether the task is blocked
// @Tags tasks
// @Router /api/v1/tasks/{id}/blocked [get]
func (h *TaskHandler) IsBlocked(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	blocking, err := h.uc.BlockingTasks(stdCtx, ownerID, pathID(ctx))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"blocked":  len(blocking) > 0,
		"blocking": blocking,
	})
}

// @Summary Dependency graph of the caller's tasks
// @Tags tasks
// @Router /api/v1/tasks/graph [get]
func (h *TaskHandler) Graph(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	g, err := h.uc.Graph(stdCtx, ownerID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, g)
}

// @Summary Tasks grouped by due month
// @Tags tasks
// @Router /api/v1/tasks/calendar [get]
func (h *TaskHandler) Calendar(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}
	q, err := transport.ParseCalendarQuery(ctx.QueryArgs())
	if err != nil {
		h.respondError(ctx, nil, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	groups, err := h.uc.Calendar(stdCtx, ownerID, q.Year, q.Sort)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	if q.Month != 0 {
		groups = groups[q.Month-1 : q.Month]
	}
	h.respondList(ctx, groups, len(groups))
}

// @Summary Complexity statistics
// @Tags tasks
// @Router /api/v1/tasks/stats [get]
func (h *TaskHandler) Stats(ctx *fasthttp.RequestCtx) {
	ownerID := h.ownerID(ctx)
	if ownerID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	stats, err := h.uc.Stats(stdCtx, ownerID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, stats)
}

func (h *TaskHandler) parseInput(ctx *fasthttp.RequestCtx) (domain.TaskInput, bool) {
	req, err := transport.DecodeTaskRequest(ctx.PostBody())
	if err != nil {
		h.badRequest(ctx, "invalid payload")
		return domain.TaskInput{}, false
	}
	in, err := req.ToInput(h.now())
	if err != nil {
		h.respondError(ctx, nil, err)
		return domain.TaskInput{}, false
	}
	return in, true
}
