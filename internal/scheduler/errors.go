package scheduler

import "errors"

// Failure taxonomy. All scheduler operations wrap one of these sentinels,
// so callers can classify with errors.Is.
var (
	// ErrTaskNotFound is returned when a task ID has no record in the graph.
	ErrTaskNotFound = errors.New("task not found")

	// ErrDuplicateTask is returned when inserting a task whose ID is taken.
	ErrDuplicateTask = errors.New("duplicate task id")

	// ErrCyclicGraph is returned when a batch insert would make the
	// sequential/conditional dependency relation cyclic.
	ErrCyclicGraph = errors.New("dependency graph contains cycle")

	// ErrDependencyUnmet is returned when a worker attempts to start a task
	// whose dependencies are not satisfied. This is a worker-side programmer
	// error; the scheduler never retries it.
	ErrDependencyUnmet = errors.New("dependency unmet")

	// ErrConcurrencyLimit is returned when a direct start would push the
	// running set past the configured concurrency limit.
	ErrConcurrencyLimit = errors.New("concurrency limit reached")

	// ErrInvalidTransition is returned for state-machine violations, such as
	// completing a task with no active execution. The scheduler state is
	// left untouched.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrSchedulerStopped is returned when new work is submitted after Stop.
	ErrSchedulerStopped = errors.New("scheduler stopped")
)
