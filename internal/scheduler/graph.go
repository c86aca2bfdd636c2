package scheduler

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"
)

// Predicate evaluates the condition attached to a conditional dependency
// edge. It receives the opaque condition reference and the dependency task
// the edge points at. A nil Predicate treats every conditional edge as
// satisfied.
type Predicate func(condition string, dependency *Task) bool

// Graph is the task store: an arena of tasks addressed by ID plus the
// dependency adjacency in both directions. It carries no lock of its own;
// the Scheduler serializes all access through its single mutex. Standalone
// use is safe only from one goroutine.
type Graph struct {
	tasks      map[string]*Task
	edges      map[string][]Edge   // taskID -> its dependency edges
	dependents map[string][]string // depID -> tasks that depend on it
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		tasks:      make(map[string]*Task),
		edges:      make(map[string][]Edge),
		dependents: make(map[string][]string),
	}
}

// AddTask inserts a task and its dependency edges. Returns ErrDuplicateTask
// if the ID is taken. Edges may reference tasks that are not inserted yet;
// Validate catches dangling references once the batch is in.
func (g *Graph) AddTask(task *Task, deps []Edge) error {
	if _, exists := g.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, task.ID)
	}

	g.tasks[task.ID] = task
	g.edges[task.ID] = append([]Edge(nil), deps...)

	for _, edge := range deps {
		if edge.Kind == EdgeParallel {
			continue // Informational, not part of the governing relation
		}
		g.dependents[edge.DependsOn] = append(g.dependents[edge.DependsOn], task.ID)
	}

	return nil
}

// remove deletes a task and its edges. Used to roll back a rejected batch.
func (g *Graph) remove(taskID string) {
	for _, edge := range g.edges[taskID] {
		if edge.Kind == EdgeParallel {
			continue
		}
		deps := g.dependents[edge.DependsOn]
		for i, id := range deps {
			if id == taskID {
				g.dependents[edge.DependsOn] = append(deps[:i], deps[i+1:]...)
				break
			}
		}
	}
	delete(g.edges, taskID)
	delete(g.tasks, taskID)
}

// Validate verifies that every governing (sequential/conditional) edge
// points at an existing task and that the governing relation is acyclic,
// using gammazero/toposort. Returns the topological task-ID order.
func (g *Graph) Validate() ([]string, error) {
	for taskID, edges := range g.edges {
		for _, edge := range edges {
			if _, exists := g.tasks[edge.DependsOn]; !exists {
				return nil, fmt.Errorf("task %q depends on non-existent task %q", taskID, edge.DependsOn)
			}
		}
	}

	var sortEdges []toposort.Edge
	for taskID, edges := range g.edges {
		governing := 0
		for _, edge := range edges {
			if edge.Kind == EdgeParallel {
				continue
			}
			governing++
			// Edge (dep, task) means dep must come before task
			sortEdges = append(sortEdges, toposort.Edge{edge.DependsOn, taskID})
		}
		if governing == 0 {
			// No governing deps - edge from nil so the task is still included
			sortEdges = append(sortEdges, toposort.Edge{nil, taskID})
		}
	}

	sorted, err := toposort.Toposort(sortEdges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCyclicGraph, err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	// Catches tasks lost by the sort (should not happen on valid input)
	if len(order) != len(g.tasks) {
		missing := []string{}
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		for taskID := range g.tasks {
			if !found[taskID] {
				missing = append(missing, taskID)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// CanExecute reports whether every governing dependency of the task is
// satisfied: sequential edges require the dependency to be completed,
// conditional edges require the predicate to hold, parallel edges are
// ignored. Evaluated lazily on every call, never cached.
func (g *Graph) CanExecute(taskID string, pred Predicate) bool {
	if _, exists := g.tasks[taskID]; !exists {
		return false
	}

	for _, edge := range g.edges[taskID] {
		switch edge.Kind {
		case EdgeParallel:
			continue
		case EdgeSequential:
			dep, exists := g.tasks[edge.DependsOn]
			if !exists || dep.Status != TaskCompleted {
				return false
			}
		case EdgeConditional:
			if pred == nil {
				continue
			}
			if !pred(edge.Condition, g.tasks[edge.DependsOn]) {
				return false
			}
		}
	}

	return true
}

// Get returns a copy of the task by ID.
func (g *Graph) Get(taskID string) (*Task, bool) {
	task, exists := g.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// get returns the live task record for internal mutation.
func (g *Graph) get(taskID string) (*Task, bool) {
	task, exists := g.tasks[taskID]
	return task, exists
}

// Tasks returns copies of all tasks.
func (g *Graph) Tasks() []*Task {
	tasks := make([]*Task, 0, len(g.tasks))
	for _, task := range g.tasks {
		tasks = append(tasks, cloneTask(task))
	}
	return tasks
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// DependentsOf returns the IDs of tasks with a governing edge on taskID.
func (g *Graph) DependentsOf(taskID string) []string {
	return append([]string(nil), g.dependents[taskID]...)
}

// Dependencies returns the dependency edges declared by taskID.
func (g *Graph) Dependencies(taskID string) []Edge {
	return append([]Edge(nil), g.edges[taskID]...)
}
