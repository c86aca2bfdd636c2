package scheduler

import "sort"

// chainHours computes the longest sequential-dependency chain terminating
// at taskID, measured in estimated hours, with memoization. The visiting
// guard stops revisiting a node within one traversal so a malformed cyclic
// graph cannot recurse forever (batch validation rejects cycles up front,
// but the analyzer is also usable on a standalone Graph).
func (g *Graph) chainHours(taskID string, memo map[string]float64, visiting map[string]bool) float64 {
	if hours, done := memo[taskID]; done {
		return hours
	}
	if visiting[taskID] {
		return 0
	}
	visiting[taskID] = true
	defer delete(visiting, taskID)

	task, exists := g.tasks[taskID]
	if !exists {
		return 0
	}

	longest := 0.0
	for _, edge := range g.edges[taskID] {
		if edge.Kind != EdgeSequential {
			continue
		}
		if hours := g.chainHours(edge.DependsOn, memo, visiting); hours > longest {
			longest = hours
		}
	}

	total := task.EstimatedHours + longest
	memo[taskID] = total
	return total
}

// CriticalPath returns the maximum-duration chain of sequentially dependent
// tasks, ordered start to terminal, plus its total estimated hours. This is
// the chain that bounds the minimum achievable makespan of the whole graph.
// Ties break toward the lexicographically smallest task ID so the result is
// deterministic.
func (g *Graph) CriticalPath() ([]*Task, float64) {
	if len(g.tasks) == 0 {
		return nil, 0
	}

	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	memo := make(map[string]float64, len(g.tasks))
	visiting := make(map[string]bool)

	terminal := ""
	best := -1.0
	for _, id := range ids {
		if hours := g.chainHours(id, memo, visiting); hours > best {
			best = hours
			terminal = id
		}
	}

	// Walk dependency edges backward from the terminal node, following the
	// dependency with the longest chain at each step.
	var reversed []string
	current := terminal
	for current != "" {
		reversed = append(reversed, current)

		next := ""
		nextHours := -1.0
		deps := append([]Edge(nil), g.edges[current]...)
		sort.Slice(deps, func(i, j int) bool { return deps[i].DependsOn < deps[j].DependsOn })
		for _, edge := range deps {
			if edge.Kind != EdgeSequential {
				continue
			}
			if hours, done := memo[edge.DependsOn]; done && hours > nextHours {
				nextHours = hours
				next = edge.DependsOn
			}
		}
		current = next
	}

	path := make([]*Task, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, cloneTask(g.tasks[reversed[i]]))
	}
	return path, best
}
