package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aristath/taskflow/internal/scheduler"
)

// plan is the JSON shape produced by the planning collaborator: an ordered
// list of task descriptions plus a dependency map.
type plan struct {
	Tasks        []planTask                  `json:"tasks"`
	Dependencies map[string][]planDependency `json:"dependencies"`
}

type planTask struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Type           string   `json:"type"`
	Priority       int      `json:"priority"`
	Complexity     string   `json:"complexity,omitempty"`
	EstimatedHours float64  `json:"estimated_hours"`
	RequiredSkills []string `json:"required_skills,omitempty"`
}

type planDependency struct {
	DependsOn string `json:"depends_on"`
	Kind      string `json:"kind,omitempty"` // sequential (default), parallel, conditional
	Condition string `json:"condition,omitempty"`
}

// loadPlan reads and parses a plan file.
func loadPlan(path string) (*plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan %s: %w", path, err)
	}

	var p plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan %s: %w", path, err)
	}

	if len(p.Tasks) == 0 {
		return nil, fmt.Errorf("plan %s contains no tasks", path)
	}

	return &p, nil
}

// build converts the plan into scheduler tasks and dependency edges.
func (p *plan) build() ([]*scheduler.Task, map[string][]scheduler.Edge, error) {
	tasks := make([]*scheduler.Task, 0, len(p.Tasks))
	for _, pt := range p.Tasks {
		tasks = append(tasks, &scheduler.Task{
			ID:             pt.ID,
			Title:          pt.Title,
			Description:    pt.Description,
			Type:           scheduler.TaskType(pt.Type),
			Priority:       pt.Priority,
			Complexity:     pt.Complexity,
			EstimatedHours: pt.EstimatedHours,
			RequiredSkills: pt.RequiredSkills,
		})
	}

	deps := make(map[string][]scheduler.Edge, len(p.Dependencies))
	for taskID, list := range p.Dependencies {
		edges := make([]scheduler.Edge, 0, len(list))
		for _, pd := range list {
			kind, err := parseEdgeKind(pd.Kind)
			if err != nil {
				return nil, nil, fmt.Errorf("task %q: %w", taskID, err)
			}
			edges = append(edges, scheduler.Edge{
				DependsOn: pd.DependsOn,
				Kind:      kind,
				Condition: pd.Condition,
			})
		}
		deps[taskID] = edges
	}

	return tasks, deps, nil
}

func parseEdgeKind(kind string) (scheduler.EdgeKind, error) {
	switch kind {
	case "", "sequential":
		return scheduler.EdgeSequential, nil
	case "parallel":
		return scheduler.EdgeParallel, nil
	case "conditional":
		return scheduler.EdgeConditional, nil
	}
	return 0, fmt.Errorf("unknown dependency kind %q", kind)
}
