package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask      = "task"
	TopicScheduler = "scheduler"
)

// Event type constants
const (
	EventTypeTaskAdded         = "task.added"
	EventTypeTaskQueued        = "task.queued"
	EventTypeTaskDispatched    = "task.dispatched"
	EventTypeTaskStarted       = "task.started"
	EventTypeTaskProgress      = "task.progress"
	EventTypeTaskCompleted     = "task.completed"
	EventTypeTaskFailed        = "task.failed"
	EventTypeTaskRetry         = "task.retry"
	EventTypeTaskEscalated     = "task.escalated"
	EventTypeSchedulerProgress = "scheduler.progress"
)

// TaskAddedEvent is published when a task is inserted into the graph.
type TaskAddedEvent struct {
	ID        string
	Timestamp time.Time
}

func (e TaskAddedEvent) EventType() string { return EventTypeTaskAdded }
func (e TaskAddedEvent) TaskID() string    { return e.ID }

// TaskQueuedEvent is published when a task enters the ready queue.
type TaskQueuedEvent struct {
	ID        string
	Priority  int
	Timestamp time.Time
}

func (e TaskQueuedEvent) EventType() string { return EventTypeTaskQueued }
func (e TaskQueuedEvent) TaskID() string    { return e.ID }

// TaskDispatchedEvent is published when the dispatcher offers a task to the
// worker collaborator.
type TaskDispatchedEvent struct {
	ID        string
	Timestamp time.Time
}

func (e TaskDispatchedEvent) EventType() string { return EventTypeTaskDispatched }
func (e TaskDispatchedEvent) TaskID() string    { return e.ID }

// TaskStartedEvent is published when a worker accepts a task.
type TaskStartedEvent struct {
	ID          string
	ExecutionID string
	WorkerID    string
	Timestamp   time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskProgressEvent is published when a worker reports progress.
type TaskProgressEvent struct {
	ID        string
	Percent   int
	Message   string
	Timestamp time.Time
}

func (e TaskProgressEvent) EventType() string { return EventTypeTaskProgress }
func (e TaskProgressEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID          string
	ExecutionID string
	Artifacts   []string
	Duration    time.Duration
	Timestamp   time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published on every execution failure. Permanent marks
// failures that will not be retried.
type TaskFailedEvent struct {
	ID          string
	ExecutionID string
	Reason      string
	Permanent   bool
	Timestamp   time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskRetryEvent is published when a failed task is scheduled for re-queue
// after a backoff delay.
type TaskRetryEvent struct {
	ID        string
	Attempt   int
	Delay     time.Duration
	Timestamp time.Time
}

func (e TaskRetryEvent) EventType() string { return EventTypeTaskRetry }
func (e TaskRetryEvent) TaskID() string    { return e.ID }

// TaskEscalatedEvent is published when a task fails permanently and needs
// attention from the planning collaborator.
type TaskEscalatedEvent struct {
	ID        string
	Reason    string
	Timestamp time.Time
}

func (e TaskEscalatedEvent) EventType() string { return EventTypeTaskEscalated }
func (e TaskEscalatedEvent) TaskID() string    { return e.ID }

// SchedulerProgressEvent is published after every terminal transition.
// Retrying counts pending tasks held back by a backoff timer.
type SchedulerProgressEvent struct {
	Total     int
	Pending   int
	Queued    int
	Running   int
	Completed int
	Failed    int
	Retrying  int
	Timestamp time.Time
}

func (e SchedulerProgressEvent) EventType() string { return EventTypeSchedulerProgress }
func (e SchedulerProgressEvent) TaskID() string    { return "" }
