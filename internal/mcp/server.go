// Package mcp exposes the task graph store as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fastygo/taskplanner/api/transport"
	"github.com/fastygo/taskplanner/domain"
	taskUC "github.com/fastygo/taskplanner/usecase/task"
)

// Version is reported to MCP clients during initialisation.
const Version = "0.1.0"

type tools struct {
	uc    *taskUC.UseCase
	owner string
	now   func() time.Time
}

// NewServer registers the task tools. Every call acts on behalf of ownerID.
func NewServer(uc *taskUC.UseCase, ownerID string) *server.MCPServer {
	s := server.NewMCPServer("taskplanner", Version)
	t := &tools{uc: uc, owner: ownerID, now: time.Now}

	s.AddTool(mcp.NewTool("create_task", append([]mcp.ToolOption{
		mcp.WithDescription("Create a task. Status defaults to pending, priority to medium, complexity to moderate."),
	}, taskFields("Task")...)...), t.createTask)

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a single task by id."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
	), t.getTask)

	s.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Update fields of a task. Omitted fields are kept; an empty due_date clears it."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("status", mcp.Description("New status")),
		mcp.WithString("priority", mcp.Description("New priority")),
		mcp.WithString("complexity", mcp.Description("New complexity")),
		mcp.WithString("due_date", mcp.Description("New due date")),
		mcp.WithArray("tags", mcp.Description("Replacement tags"), mcp.WithStringItems()),
	), t.updateTask)

	s.AddTool(mcp.NewTool("update_task_status",
		mcp.WithDescription("Change only the status of a task."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("status", mcp.Description("pending|in-progress|completed|cancelled|deferred"), mcp.Required()),
	), t.updateTaskStatus)

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task. References held by other tasks are left dangling."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
	), t.deleteTask)

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks, newest first, with optional filters."),
		mcp.WithString("status", mcp.Description("Filter by status")),
		mcp.WithString("priority", mcp.Description("Filter by priority")),
		mcp.WithString("due_date", mcp.Description("YYYY-MM-DD for one day or start,end for an inclusive range")),
		mcp.WithNumber("limit", mcp.Description("Page size (1-100, default 50)")),
		mcp.WithNumber("offset", mcp.Description("Rows to skip")),
	), t.listTasks)

	s.AddTool(mcp.NewTool("add_subtask", append([]mcp.ToolOption{
		mcp.WithDescription("Create a task as a subtask of an existing task."),
		mcp.WithString("parent_id", mcp.Description("Parent task id"), mcp.Required()),
	}, taskFields("Subtask")...)...), t.addSubtask)

	s.AddTool(mcp.NewTool("add_dependency",
		mcp.WithDescription("Record that a task cannot start before another completes. Cycles and duplicates are rejected."),
		mcp.WithString("task_id", mcp.Description("Dependent task id"), mcp.Required()),
		mcp.WithString("dependency_id", mcp.Description("Prerequisite task id"), mcp.Required()),
	), t.addDependency)

	s.AddTool(mcp.NewTool("is_blocked",
		mcp.WithDescription("Report whether a task has unfinished dependencies, and which."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
	), t.isBlocked)

	s.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the dependency and subtask graph of all tasks as JSON."),
	), t.getGraph)

	return s
}

// taskFields are the arguments shared by create_task and add_subtask.
func taskFields(noun string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("title", mcp.Description(noun+" title (3-100 chars)"), mcp.Required()),
		mcp.WithString("description", mcp.Description(noun+" description (max 500 chars)")),
		mcp.WithString("status", mcp.Description("pending|in-progress|completed|cancelled|deferred")),
		mcp.WithString("priority", mcp.Description("low|medium|high")),
		mcp.WithString("complexity", mcp.Description("simple|moderate|complex or a score 1-8")),
		mcp.WithString("due_date", mcp.Description("Due date, YYYY-MM-DD or RFC3339, must be in the future")),
		mcp.WithArray("tags", mcp.Description("Tags"), mcp.WithStringItems()),
	}
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func (t *tools) createTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := t.input(req)
	if err != nil {
		return errorResult(err), nil
	}
	task, err := t.uc.Create(ctx, t.owner, in)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(task)
}

func (t *tools) getTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := t.uc.Get(ctx, t.owner, mcp.ParseString(req, "id", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(task)
}

func (t *tools) updateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	var patch domain.TaskPatch
	if v, ok := args["title"].(string); ok {
		patch.Title = &v
	}
	if v, ok := args["description"].(string); ok {
		patch.Description = &v
	}
	if v, ok := args["status"].(string); ok {
		s := domain.Status(v)
		patch.Status = &s
	}
	if v, ok := args["priority"].(string); ok {
		p := domain.Priority(v)
		patch.Priority = &p
	}
	if v, ok := args["complexity"].(string); ok && v != "" {
		c, err := domain.ParseComplexity(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		patch.Complexity = &c
	}
	if v, ok := args["due_date"].(string); ok {
		if strings.TrimSpace(v) == "" {
			patch.ClearDue = true
		} else {
			due, err := transport.ParseDueDate(v)
			if err != nil {
				return errorResult(err), nil
			}
			patch.DueDate = &due
		}
	}
	if _, ok := args["tags"]; ok {
		tags := stringSlice(args["tags"])
		patch.Tags = &tags
	}

	task, err := t.uc.Update(ctx, t.owner, mcp.ParseString(req, "id", ""), patch)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(task)
}

func (t *tools) updateTaskStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := domain.Status(mcp.ParseString(req, "status", ""))
	task, err := t.uc.UpdateStatus(ctx, t.owner, mcp.ParseString(req, "id", ""), status)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(task)
}

func (t *tools) deleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := t.uc.Delete(ctx, t.owner, mcp.ParseString(req, "id", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task '%s' (%s) deleted", task.Title, task.ID)), nil
}

func (t *tools) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, err := transport.ParseTaskFilter(t.owner, argQuery(req.GetArguments()))
	if err != nil {
		return errorResult(err), nil
	}
	tasks, err := t.uc.List(ctx, filter)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tasks)
}

// argQuery presents tool arguments to the HTTP query parsers.
type argQuery map[string]interface{}

func (q argQuery) Peek(key string) []byte {
	switch v := q[key].(type) {
	case string:
		return []byte(v)
	case float64:
		return []byte(strconv.FormatFloat(v, 'f', -1, 64))
	case int:
		return []byte(strconv.Itoa(v))
	default:
		return nil
	}
}

func (t *tools) addSubtask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := t.input(req)
	if err != nil {
		return errorResult(err), nil
	}
	task, err := t.uc.AddSubtask(ctx, t.owner, mcp.ParseString(req, "parent_id", ""), in)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(task)
}

func (t *tools) addDependency(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	depID := mcp.ParseString(req, "dependency_id", "")
	if err := (transport.DependencyRequest{DependencyID: depID}).Validate(); err != nil {
		return errorResult(err), nil
	}
	task, err := t.uc.AddDependency(ctx, t.owner, mcp.ParseString(req, "task_id", ""), depID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(task)
}

func (t *tools) isBlocked(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blocking, err := t.uc.BlockingTasks(ctx, t.owner, mcp.ParseString(req, "id", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]interface{}{
		"blocked":  len(blocking) > 0,
		"blocking": blocking,
	})
}

func (t *tools) getGraph(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := t.uc.Graph(ctx, t.owner)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(g)
}

// input builds a TaskInput from the tool arguments. A due date must lie in the future.
func (t *tools) input(req mcp.CallToolRequest) (domain.TaskInput, error) {
	in := domain.TaskInput{
		Title:       mcp.ParseString(req, "title", ""),
		Description: mcp.ParseString(req, "description", ""),
		Status:      domain.Status(mcp.ParseString(req, "status", "")),
		Priority:    domain.Priority(mcp.ParseString(req, "priority", "")),
		Tags:        stringSlice(req.GetArguments()["tags"]),
	}
	if v := mcp.ParseString(req, "complexity", ""); v != "" {
		c, err := domain.ParseComplexity(v)
		if err != nil {
			return in, domain.ValidationError([]domain.FieldError{{Field: "complexity", Message: err.Error()}})
		}
		in.Complexity = c
	}
	var now time.Time
	if v := mcp.ParseString(req, "due_date", ""); v != "" {
		due, err := transport.ParseDueDate(v)
		if err != nil {
			return in, domain.ValidationError([]domain.FieldError{{Field: "due_date", Message: err.Error()}})
		}
		in.DueDate = &due
		now = t.now()
	}
	return in, in.Validate(now)
}

func stringSlice(v interface{}) []string {
	items, _ := v.([]interface{})
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult reports domain errors with their code and field details so the
// client can tell a rejected edge from a missing task.
func errorResult(err error) *mcp.CallToolResult {
	var b strings.Builder
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		fmt.Fprintf(&b, "%s: %s", dErr.Code, dErr.Message)
		for _, f := range dErr.Fields {
			fmt.Fprintf(&b, "\n- %s: %s", f.Field, f.Message)
		}
	} else {
		b.WriteString(err.Error())
	}
	return mcp.NewToolResultError(b.String())
}
