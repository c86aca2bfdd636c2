package scheduler

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus int

const (
	TaskPending    TaskStatus = iota // Waiting for dependencies or a retry backoff
	TaskQueued                       // Dependencies satisfied, waiting for dispatch
	TaskInProgress                   // Accepted by a worker, currently executing
	TaskCompleted                    // Finished successfully
	TaskFailed                       // Finished permanently with error
)

// String returns a human-readable status name.
func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskQueued:
		return "queued"
	case TaskInProgress:
		return "in_progress"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	}
	return "unknown"
}

// TaskType categorizes the kind of work a task represents.
type TaskType string

const (
	TypeAnalysis      TaskType = "analysis"
	TypeCoding        TaskType = "coding"
	TypeTesting       TaskType = "testing"
	TypeDocumentation TaskType = "documentation"
	TypeResearch      TaskType = "research"
	TypeIntegration   TaskType = "integration"
	TypeDeployment    TaskType = "deployment"
	TypeDebugging     TaskType = "debugging"
)

// EdgeKind determines how a dependency edge affects readiness.
type EdgeKind int

const (
	EdgeSequential  EdgeKind = iota // Blocks until the dependency completes
	EdgeParallel                    // Informational only, never blocks
	EdgeConditional                 // Blocks until the condition predicate holds
)

// Edge is a dependency declaration: the owning task depends on DependsOn.
// Condition is an opaque predicate reference, only meaningful for
// EdgeConditional edges; the scheduler hands it to the caller-supplied
// Predicate unchanged.
type Edge struct {
	DependsOn string
	Kind      EdgeKind
	Condition string
}

// Issue records a problem attached to a task. Escalate marks issues that
// require attention from the planning collaborator.
type Issue struct {
	Message   string
	Severity  string
	Escalate  bool
	Timestamp time.Time
}

// Task represents a unit of work in the dependency graph.
// Tasks are owned by the scheduler: callers receive defensive copies and
// mutate state only through StartTask/Progress/Complete/Fail.
type Task struct {
	ID             string
	Title          string
	Description    string
	Type           TaskType
	Priority       int     // Higher dispatches first
	Complexity     string  // Informational
	EstimatedHours float64 // Duration estimate, feeds the critical-path analyzer
	RequiredSkills []string
	Status         TaskStatus
	Artifacts      []string // Appended on completion
	Issues         []Issue  // Appended on failure/retry
	Escalated      bool     // Set on permanent failure
	CreatedAt      time.Time
	StartedAt      time.Time // Zero until first dispatch is accepted
	CompletedAt    time.Time // Zero until completed
	LastUpdated    time.Time
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.RequiredSkills != nil {
		cp.RequiredSkills = append([]string(nil), task.RequiredSkills...)
	}
	if task.Artifacts != nil {
		cp.Artifacts = append([]string(nil), task.Artifacts...)
	}
	if task.Issues != nil {
		cp.Issues = append([]Issue(nil), task.Issues...)
	}
	return &cp
}
