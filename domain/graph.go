package domain

// EdgeKind distinguishes the two relations drawn in the task graph.
type EdgeKind string

const (
	EdgeDependency EdgeKind = "dependency"
	EdgeSubtask    EdgeKind = "subtask"
)

// CyclePolicy selects how AddDependency guards against cycles.
type CyclePolicy string

const (
	// CycleDirect rejects only the immediate reverse edge (B already depends on A).
	CycleDirect CyclePolicy = "direct"
	// CycleTransitive rejects any edge that would close a cycle of any length.
	CycleTransitive CyclePolicy = "transitive"
)

func (p CyclePolicy) IsValid() bool {
	return p == CycleDirect || p == CycleTransitive
}

type GraphNode struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     Status     `json:"status"`
	Priority   Priority   `json:"priority"`
	Complexity Complexity `json:"complexity"`
	Blocked    bool       `json:"blocked"`
}

// GraphEdge points from the prerequisite (or parent) to the dependent (or child).
type GraphEdge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// TaskIndex maps task ids to tasks for graph lookups.
type TaskIndex map[string]*Task

func IndexTasks(tasks []Task) TaskIndex {
	idx := make(TaskIndex, len(tasks))
	for i := range tasks {
		idx[tasks[i].ID] = &tasks[i]
	}
	return idx
}

// Blocking returns the dependencies of t that resolve in idx and are not completed.
// Ids that do not resolve are dangling and never block.
func (idx TaskIndex) Blocking(t *Task) []*Task {
	if t == nil {
		return nil
	}
	var out []*Task
	for _, depID := range t.Dependencies {
		dep, ok := idx[depID]
		if !ok {
			continue
		}
		if !dep.IsCompleted() {
			out = append(out, dep)
		}
	}
	return out
}

func (idx TaskIndex) IsBlocked(t *Task) bool {
	return len(idx.Blocking(t)) > 0
}

// Reaches reports whether from transitively depends on to.
func (idx TaskIndex) Reaches(from, to string) bool {
	seen := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if t, ok := idx[id]; ok {
			stack = append(stack, t.Dependencies...)
		}
	}
	return false
}

// CheckDependency validates the edge "task depends on dep" against the
// invariants: no self edge, no cycle under policy, no duplicate.
func CheckDependency(idx TaskIndex, task, dep *Task, policy CyclePolicy) error {
	if task.ID == dep.ID {
		return ErrSelfDependency
	}
	if dep.HasDependency(task.ID) {
		return ErrCircularDependency
	}
	if policy == CycleTransitive && idx != nil && idx.Reaches(dep.ID, task.ID) {
		return ErrCircularDependency
	}
	if task.HasDependency(dep.ID) {
		return ErrDuplicateDependency
	}
	return nil
}

// BuildGraph projects tasks into nodes and edges. Edges whose endpoints are not
// both present are dropped.
func BuildGraph(tasks []Task) Graph {
	idx := IndexTasks(tasks)
	g := Graph{
		Nodes: make([]GraphNode, 0, len(tasks)),
		Edges: []GraphEdge{},
	}
	for i := range tasks {
		t := &tasks[i]
		g.Nodes = append(g.Nodes, GraphNode{
			ID:         t.ID,
			Title:      t.Title,
			Status:     t.Status,
			Priority:   t.Priority,
			Complexity: t.Complexity,
			Blocked:    idx.IsBlocked(t),
		})
		for _, depID := range t.Dependencies {
			if _, ok := idx[depID]; ok {
				g.Edges = append(g.Edges, GraphEdge{Source: depID, Target: t.ID, Kind: EdgeDependency})
			}
		}
		if t.ParentTask != "" {
			if _, ok := idx[t.ParentTask]; ok {
				g.Edges = append(g.Edges, GraphEdge{Source: t.ParentTask, Target: t.ID, Kind: EdgeSubtask})
			}
		}
	}
	return g
}
