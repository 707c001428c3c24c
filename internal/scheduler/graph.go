package scheduler

import (
	"fmt"
	"sync"

	"github.com/gammazero/toposort"
)

// Counts tallies tasks by status.
type Counts struct {
	Total   int
	Pending int
	Running int
	Done    int
	Failed  int
}

// Graph is the task arena for one refinement iteration. It owns every task,
// hands out clones and serializes writes so a task's status, output and
// summary always change together.
type Graph struct {
	mu     sync.RWMutex
	tasks  map[string]*Task
	order  []string // insertion order
	rootID string
}

// NewGraph creates a graph seeded with root. The graph stores its own copy.
func NewGraph(root *Task) *Graph {
	g := &Graph{
		tasks:  make(map[string]*Task),
		rootID: root.ID,
	}
	g.tasks[root.ID] = cloneTask(root)
	g.order = append(g.order, root.ID)
	return g
}

// Add inserts task. Returns error if the ID already exists.
func (g *Graph) Add(task *Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %q already exists", task.ID)
	}

	g.tasks[task.ID] = cloneTask(task)
	g.order = append(g.order, task.ID)
	return nil
}

// Has reports whether id names a task in the graph.
func (g *Graph) Has(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.tasks[id]
	return ok
}

// Get returns a copy of the task.
func (g *Graph) Get(id string) (*Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	task, exists := g.tasks[id]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Root returns a copy of the root task.
func (g *Graph) Root() *Task {
	t, _ := g.Get(g.rootID)
	return t
}

// Tasks returns copies of all tasks in insertion order.
func (g *Graph) Tasks() []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tasks := make([]*Task, 0, len(g.order))
	for _, id := range g.order {
		tasks = append(tasks, cloneTask(g.tasks[id]))
	}
	return tasks
}

// Children returns copies of the tasks whose parent is parentID, in insertion order.
func (g *Graph) Children(parentID string) []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var children []*Task
	for _, id := range g.order {
		if t := g.tasks[id]; t.ParentID == parentID {
			children = append(children, cloneTask(t))
		}
	}
	return children
}

// Ready returns the pending tasks not assigned to exclude whose dependencies
// are all present and DONE. A task without dependencies is ready as soon as
// it is pending.
func (g *Graph) Ready(exclude string) []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []*Task
	for _, id := range g.order {
		task := g.tasks[id]
		if task.Status != TaskPending || task.Worker == exclude {
			continue
		}
		if g.dependenciesDone(task) {
			ready = append(ready, cloneTask(task))
		}
	}
	return ready
}

// Blocked returns the pending tasks not assigned to exclude that are not ready.
func (g *Graph) Blocked(exclude string) []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var blocked []*Task
	for _, id := range g.order {
		task := g.tasks[id]
		if task.Status != TaskPending || task.Worker == exclude {
			continue
		}
		if !g.dependenciesDone(task) {
			blocked = append(blocked, cloneTask(task))
		}
	}
	return blocked
}

func (g *Graph) dependenciesDone(task *Task) bool {
	for _, depID := range task.DependsOn {
		dep, exists := g.tasks[depID]
		if !exists || dep.Status != TaskDone {
			return false
		}
	}
	return true
}

// Start moves a task from PENDING to RUNNING. It returns false if the task is
// missing or no longer pending, so a task is started at most once.
func (g *Graph) Start(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[id]
	if !exists || task.Status != TaskPending {
		return false
	}
	task.Status = TaskRunning
	return true
}

// Complete sets a task DONE together with its output and summary.
func (g *Graph) Complete(id, output, summary string) error {
	return g.finish(id, TaskDone, output, summary)
}

// Fail sets a task FAILED with a diagnostic output.
func (g *Graph) Fail(id, output string) error {
	return g.finish(id, TaskFailed, output, "")
}

func (g *Graph) finish(id string, status TaskStatus, output, summary string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[id]
	if !exists {
		return fmt.Errorf("task %q not found", id)
	}
	if task.Status.Terminal() {
		return fmt.Errorf("task %q already %s", id, task.Status)
	}

	task.Output = output
	task.Summary = summary
	task.Status = status
	return nil
}

// Counts tallies tasks by status, excluding those assigned to exclude.
func (g *Graph) Counts(exclude string) Counts {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var c Counts
	for _, task := range g.tasks {
		if task.Worker == exclude {
			continue
		}
		c.Total++
		switch task.Status {
		case TaskPending:
			c.Pending++
		case TaskRunning:
			c.Running++
		case TaskDone:
			c.Done++
		case TaskFailed:
			c.Failed++
		}
	}
	return c
}

// Order returns task IDs in dependency order using gammazero/toposort.
// Dependencies that are not in the graph are ignored. A cycle is reported
// as an error.
func (g *Graph) Order() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []toposort.Edge
	for _, id := range g.order {
		task := g.tasks[id]
		linked := false
		for _, depID := range task.DependsOn {
			if _, exists := g.tasks[depID]; !exists {
				continue
			}
			// Edge (depID, id) means depID must come before id
			edges = append(edges, toposort.Edge{depID, id})
			linked = true
		}
		if !linked {
			edges = append(edges, toposort.Edge{nil, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("task graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}
