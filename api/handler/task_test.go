package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/internal/infrastructure/monitor"
	"github.com/fastygo/taskplanner/pkg/httpcontext"
	"github.com/fastygo/taskplanner/repository/memory"
	taskUC "github.com/fastygo/taskplanner/usecase/task"
)

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Code    string              `json:"code"`
	Data    json.RawMessage     `json:"data"`
	Count   *int                `json:"count"`
	Errors  []domain.FieldError `json:"errors"`
}

func newTaskHandler() *TaskHandler {
	uc := taskUC.New(memory.NewTaskRepository(), nil, nil, taskUC.Config{}, nil)
	h := NewTaskHandler(uc, httpcontext.NewAdapter(time.Second), nil)
	h.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	return h
}

func call(t *testing.T, fn fasthttp.RequestHandler, owner, id, body string, query string) (int, envelope) {
	t.Helper()
	var ctx fasthttp.RequestCtx
	if owner != "" {
		ctx.SetUserValue(OwnerIDKey, owner)
	}
	if id != "" {
		ctx.SetUserValue("id", id)
	}
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	if query != "" {
		ctx.Request.SetRequestURI("/?" + query)
	}
	fn(&ctx)

	var env envelope
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env))
	return ctx.Response.StatusCode(), env
}

func createTask(t *testing.T, h *TaskHandler, owner, body string) domain.Task {
	t.Helper()
	status, env := call(t, h.CreateTask, owner, "", body, "")
	require.Equal(t, http.StatusCreated, status, env.Message)
	var task domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &task))
	return task
}

func TestCreateAndGetTask(t *testing.T) {
	h := newTaskHandler()

	task := createTask(t, h, "u1", `{"title":"Design schema","complexity":"complex","due_date":"2025-02-01"}`)
	assert.Equal(t, domain.StatusPending, task.Status)
	assert.Equal(t, domain.PriorityMedium, task.Priority)
	assert.Equal(t, domain.Complexity(6), task.Complexity)

	status, env := call(t, h.GetTask, "u1", task.ID, "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	status, env = call(t, h.GetTask, "u2", task.ID, "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)
	assert.False(t, env.Success)
}

func TestCreateTaskValidation(t *testing.T) {
	h := newTaskHandler()

	status, env := call(t, h.CreateTask, "u1", "", `{"title":"x","due_date":"2024-01-01"}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID", env.Code)
	assert.Len(t, env.Errors, 2)

	status, _ = call(t, h.CreateTask, "u1", "", `not json`, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = call(t, h.CreateTask, "", "", `{"title":"Valid title"}`, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestDependencyRoutes(t *testing.T) {
	h := newTaskHandler()
	a := createTask(t, h, "u1", `{"title":"Task A"}`)
	b := createTask(t, h, "u1", `{"title":"Task B"}`)

	status, _ := call(t, h.AddDependency, "u1", a.ID, `{"dependency_id":"`+b.ID+`"}`, "")
	require.Equal(t, http.StatusOK, status)

	status, env := call(t, h.AddDependency, "u1", b.ID, `{"dependency_id":"`+a.ID+`"}`, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", env.Code)

	status, env = call(t, h.AddDependency, "u1", a.ID, `{}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "dependency_id", env.Errors[0].Field)

	status, env = call(t, h.IsBlocked, "u1", a.ID, "", "")
	require.Equal(t, http.StatusOK, status)
	var blocked struct {
		Blocked  bool          `json:"blocked"`
		Blocking []domain.Task `json:"blocking"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &blocked))
	assert.True(t, blocked.Blocked)
	require.Len(t, blocked.Blocking, 1)
	assert.Equal(t, b.ID, blocked.Blocking[0].ID)

	status, _ = call(t, h.UpdateStatus, "u1", b.ID, `{"status":"completed"}`, "")
	require.Equal(t, http.StatusOK, status)
	_, env = call(t, h.IsBlocked, "u1", a.ID, "", "")
	require.NoError(t, json.Unmarshal(env.Data, &blocked))
	assert.False(t, blocked.Blocked)

	status, env = call(t, h.GetDependencies, "u1", a.ID, "", "")
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)

	status, env = call(t, h.Graph, "u1", "", "", "")
	assert.Equal(t, http.StatusOK, status)
	var g domain.Graph
	require.NoError(t, json.Unmarshal(env.Data, &g))
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)
}

func TestSubtaskRoutes(t *testing.T) {
	h := newTaskHandler()
	parent := createTask(t, h, "u1", `{"title":"Parent task"}`)

	status, env := call(t, h.AddSubtask, "u1", parent.ID, `{"title":"Draft ERD"}`, "")
	require.Equal(t, http.StatusCreated, status)
	var sub domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	assert.Equal(t, parent.ID, sub.ParentTask)

	status, env = call(t, h.GetSubtasks, "u1", parent.ID, "", "")
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)

	status, _ = call(t, h.AddSubtask, "u1", "missing", `{"title":"Draft ERD"}`, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListUpdateDelete(t *testing.T) {
	h := newTaskHandler()
	first := createTask(t, h, "u1", `{"title":"First task","priority":"high"}`)
	createTask(t, h, "u1", `{"title":"Second task"}`)

	status, env := call(t, h.GetTasks, "u1", "", "", "priority=high")
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)

	status, _ = call(t, h.GetTasks, "u1", "", "", "status=bogus")
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = call(t, h.CountTasks, "u1", "", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, *env.Count)

	status, env = call(t, h.UpdateTask, "u1", first.ID, `{"title":"Renamed task","tags":["x"]}`, "")
	require.Equal(t, http.StatusOK, status)
	var updated domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "Renamed task", updated.Title)
	assert.Equal(t, domain.PriorityHigh, updated.Priority)

	status, env = call(t, h.DeleteTask, "u1", first.ID, "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Task removed", env.Message)

	status, _ = call(t, h.DeleteTask, "u1", first.ID, "", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCalendarAndStats(t *testing.T) {
	h := newTaskHandler()
	createTask(t, h, "u1", `{"title":"March task","due_date":"2025-03-10","complexity":4}`)
	createTask(t, h, "u1", `{"title":"April task","due_date":"2025-04-10"}`)

	status, env := call(t, h.Calendar, "u1", "", "", "year=2025&month=3")
	require.Equal(t, http.StatusOK, status)
	var groups []domain.MonthGroup
	require.NoError(t, json.Unmarshal(env.Data, &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, 4, groups[0].TotalComplexity)
	assert.Len(t, groups[0].Tasks, 1)

	status, _ = call(t, h.Calendar, "u1", "", "", "sort=alpha")
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = call(t, h.Stats, "u1", "", "", "")
	require.Equal(t, http.StatusOK, status)
	var stats domain.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 7, stats.TotalComplexity)
}

type staticStatus monitor.Status

func (s staticStatus) GetStatus() monitor.Status { return monitor.Status(s) }

func TestHealthCheck(t *testing.T) {
	healthy := NewHealthHandler(staticStatus{Online: true, Components: map[string]monitor.ComponentStatus{
		"database": {Healthy: true, Required: true},
	}}, nil, nil)
	status, env := call(t, healthy.Check, "", "", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	degraded := NewHealthHandler(staticStatus{Online: false, OutboxSize: 3}, nil, nil)
	status, env = call(t, degraded.Check, "", "", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "DEGRADED", env.Code)
	assert.Contains(t, string(env.Data), `"size":3`)
}
