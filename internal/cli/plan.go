package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fastygo/taskplanner/api/transport"
	"github.com/fastygo/taskplanner/domain"
	taskUC "github.com/fastygo/taskplanner/usecase/task"
)

// Plan is an import file: a list of tasks with nested subtasks and
// dependencies expressed through plan-local keys.
type Plan struct {
	Tasks []PlanTask `yaml:"tasks"`
}

type PlanTask struct {
	Key         string     `yaml:"key"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Status      string     `yaml:"status"`
	Priority    string     `yaml:"priority"`
	Complexity  string     `yaml:"complexity"`
	DueDate     string     `yaml:"due_date"`
	Tags        []string   `yaml:"tags"`
	DependsOn   []string   `yaml:"depends_on"`
	Subtasks    []PlanTask `yaml:"subtasks"`
}

// ImportResult maps every plan key to the id of the task created for it.
type ImportResult struct {
	IDs          map[string]string
	Tasks        int
	Dependencies int
}

type planEntry struct {
	task *PlanTask
	// parent indexes the entry this one is a subtask of, -1 at the top level.
	parent int
	input  domain.TaskInput
}

// ParsePlan decodes a YAML plan.
func ParsePlan(r io.Reader) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &p, nil
}

// Validate checks every task, requires unique keys, resolves every
// depends_on reference and rejects cyclic dependencies. It returns the tasks
// flattened parent-first.
func (p *Plan) Validate(now time.Time) ([]planEntry, error) {
	var (
		entries []planEntry
		errs    []string
		keys    = map[string]bool{}
	)
	var walk func(tasks []PlanTask, parent int, path string)
	walk = func(tasks []PlanTask, parent int, path string) {
		for i := range tasks {
			t := &tasks[i]
			where := fmt.Sprintf("%s[%d]", path, i)
			if t.Key != "" {
				where = t.Key
				if keys[t.Key] {
					errs = append(errs, fmt.Sprintf("%s: duplicate key", where))
				}
				keys[t.Key] = true
			}
			in, err := t.input(now)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %s", where, describe(err)))
			}
			entries = append(entries, planEntry{task: t, parent: parent, input: in})
			walk(t.Subtasks, len(entries)-1, where+".subtasks")
		}
	}
	walk(p.Tasks, -1, "tasks")
	if len(entries) == 0 {
		errs = append(errs, "plan has no tasks")
	}

	// nodes keyed by plan key, so the domain cycle check runs on the plan itself
	nodes := make([]domain.Task, 0, len(entries))
	for _, e := range entries {
		if e.task.Key != "" {
			nodes = append(nodes, domain.Task{ID: e.task.Key})
		}
	}
	idx := domain.IndexTasks(nodes)
	for _, e := range entries {
		if len(e.task.DependsOn) > 0 && e.task.Key == "" {
			errs = append(errs, fmt.Sprintf("%q: a task with depends_on needs a key", e.task.Title))
			continue
		}
		for _, dep := range e.task.DependsOn {
			if !keys[dep] {
				errs = append(errs, fmt.Sprintf("%s: unknown dependency %q", e.task.Key, dep))
				continue
			}
			task, depTask := idx[e.task.Key], idx[dep]
			if err := domain.CheckDependency(idx, task, depTask, domain.CycleTransitive); err != nil {
				errs = append(errs, fmt.Sprintf("%s -> %s: %s", e.task.Key, dep, describe(err)))
				continue
			}
			task.Dependencies = append(task.Dependencies, dep)
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid plan:\n  %s", strings.Join(errs, "\n  "))
	}
	return entries, nil
}

// Apply creates the plan through the task use case: tasks and subtasks first,
// then the dependency edges.
func (p *Plan) Apply(ctx context.Context, uc *taskUC.UseCase, owner string, now time.Time) (*ImportResult, error) {
	entries, err := p.Validate(now)
	if err != nil {
		return nil, err
	}
	res := &ImportResult{IDs: map[string]string{}}
	ids := make([]string, len(entries))
	for i, e := range entries {
		var created *domain.Task
		if e.parent < 0 {
			created, err = uc.Create(ctx, owner, e.input)
		} else {
			created, err = uc.AddSubtask(ctx, owner, ids[e.parent], e.input)
		}
		if err != nil {
			return res, fmt.Errorf("create %q: %w", e.task.Title, err)
		}
		ids[i] = created.ID
		if e.task.Key != "" {
			res.IDs[e.task.Key] = created.ID
		}
		res.Tasks++
	}
	for _, e := range entries {
		for _, dep := range e.task.DependsOn {
			if _, err := uc.AddDependency(ctx, owner, res.IDs[e.task.Key], res.IDs[dep]); err != nil {
				return res, fmt.Errorf("link %s -> %s: %w", e.task.Key, dep, err)
			}
			res.Dependencies++
		}
	}
	return res, nil
}

func (t *PlanTask) input(now time.Time) (domain.TaskInput, error) {
	in := domain.TaskInput{
		Title:       t.Title,
		Description: t.Description,
		Status:      domain.Status(t.Status),
		Priority:    domain.Priority(t.Priority),
		Tags:        t.Tags,
	}
	var fields []domain.FieldError
	if t.Complexity != "" {
		c, err := domain.ParseComplexity(t.Complexity)
		if err != nil {
			fields = append(fields, domain.FieldError{Field: "complexity", Message: err.Error()})
		}
		in.Complexity = c
	}
	if t.DueDate != "" {
		due, err := transport.ParseDueDate(t.DueDate)
		if err != nil {
			fields = append(fields, domain.FieldError{Field: "due_date", Message: "invalid date"})
		} else {
			in.DueDate = &due
		}
	}
	if err := in.Validate(now); err != nil {
		if dErr, ok := err.(*domain.Error); ok {
			fields = append(fields, dErr.Fields...)
		}
	}
	if len(fields) > 0 {
		return in, domain.ValidationError(fields)
	}
	return in, nil
}

func describe(err error) string {
	if dErr, ok := err.(*domain.Error); ok {
		if len(dErr.Fields) == 0 {
			return dErr.Message
		}
		parts := make([]string, 0, len(dErr.Fields))
		for _, f := range dErr.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}
