package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/taskflow/internal/events"
)

// Config configures the scheduler.
type Config struct {
	ConcurrencyLimit int           // Max concurrently running tasks (default 5)
	TickInterval     time.Duration // Dispatcher period (default 1s)
	MaxRetries       int           // Retry budget per task (default 3)
	DispatchBuffer   int           // Dispatch stream capacity (default 16)
}

func (c Config) withDefaults() Config {
	if c.ConcurrencyLimit <= 0 {
		c.ConcurrencyLimit = 5
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.DispatchBuffer <= 0 {
		c.DispatchBuffer = 16
	}
	return c
}

// Status is a point-in-time snapshot for monitoring layers. Retrying counts
// the subset of pending tasks held back by a backoff timer; they will
// re-queue on their own.
type Status struct {
	Total           int
	Pending         int
	Queued          int
	Running         int
	Completed       int
	Failed          int
	Retrying        int
	ProgressPercent float64
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock injects a clock, used by tests for deterministic timers.
func WithClock(clock Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithBus injects a shared event bus instead of a private one.
func WithBus(bus *events.Bus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

// WithPredicate supplies the evaluator for conditional dependency edges.
func WithPredicate(pred Predicate) Option {
	return func(s *Scheduler) { s.pred = pred }
}

// Scheduler is the dependency-graph task scheduler. It decides when tasks
// become eligible, bounds how many run concurrently, tracks executions, and
// retries failures with exponential backoff. It never executes task
// payloads itself: ready tasks are offered on the dispatch stream and the
// worker collaborator reports outcomes back through StartTask, Progress,
// Complete, and Fail.
//
// All state transitions, whatever goroutine triggers them (a worker
// callback, a dispatcher tick, a backoff timer), are serialized through the
// single mutex.
type Scheduler struct {
	cfg   Config
	clock Clock
	bus   *events.Bus
	pred  Predicate

	mu         sync.Mutex
	graph      *Graph
	ready      *readyQueue
	running    map[string]struct{}   // Dispatched or in-progress, bounded by ConcurrencyLimit
	executions map[string]*Execution // Active execution per task
	history    map[string][]*Execution
	retry      *retryManager
	stopped    bool
	started    bool

	dispatch chan *Task
	ticker   Ticker
	quit     chan struct{}
}

// New creates a scheduler. The zero Config takes all defaults.
func New(cfg Config, opts ...Option) *Scheduler {
	cfg = cfg.withDefaults()

	s := &Scheduler{
		cfg:        cfg,
		clock:      NewClock(),
		graph:      NewGraph(),
		ready:      newReadyQueue(),
		running:    make(map[string]struct{}),
		executions: make(map[string]*Execution),
		history:    make(map[string][]*Execution),
		retry:      newRetryManager(cfg.MaxRetries),
		dispatch:   make(chan *Task, cfg.DispatchBuffer),
		quit:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.bus == nil {
		s.bus = events.NewBus()
	}

	return s
}

// Bus returns the monitoring event bus.
func (s *Scheduler) Bus() *events.Bus {
	return s.bus
}

// Dispatches returns the stream of tasks offered to the worker
// collaborator. Closed by Stop.
func (s *Scheduler) Dispatches() <-chan *Task {
	return s.dispatch
}

// Add inserts a single task with its dependency edges.
func (s *Scheduler) Add(task *Task, deps []Edge) error {
	return s.AddBatch([]*Task{task}, map[string][]Edge{task.ID: deps})
}

// AddBatch inserts a batch of tasks atomically with respect to readiness
// evaluation: all tasks are inserted before any readiness check runs, so
// forward references within the batch resolve correctly. The batch is
// rejected as a whole if it introduces a duplicate ID, a dangling
// dependency reference, or a cycle in the governing dependency relation.
func (s *Scheduler) AddBatch(tasks []*Task, deps map[string][]Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	now := s.clock.Now()
	inserted := make([]string, 0, len(tasks))
	rollback := func() {
		for _, id := range inserted {
			s.graph.remove(id)
		}
	}

	for _, task := range tasks {
		if task.ID == "" {
			rollback()
			return fmt.Errorf("task with empty id in batch")
		}

		t := cloneTask(task)
		t.Status = TaskPending
		t.CreatedAt = now
		t.LastUpdated = now

		if err := s.graph.AddTask(t, deps[t.ID]); err != nil {
			rollback()
			return err
		}
		inserted = append(inserted, t.ID)
	}

	if _, err := s.graph.Validate(); err != nil {
		rollback()
		return err
	}

	for _, id := range inserted {
		s.publishTask(events.TaskAddedEvent{ID: id, Timestamp: now})
	}

	for _, id := range inserted {
		task, _ := s.graph.get(id)
		if s.graph.CanExecute(id, s.pred) {
			task.Status = TaskQueued
			task.LastUpdated = now
			s.ready.push(id, task.Priority)
			s.publishTask(events.TaskQueuedEvent{ID: id, Priority: task.Priority, Timestamp: now})
		}
	}

	return nil
}

// Start launches the dispatcher loop. The loop ticks on the configured
// period until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.ticker = s.clock.NewTicker(s.cfg.TickInterval)
	ticker := s.ticker
	s.mu.Unlock()

	go s.run(ctx, ticker)
	return nil
}

func (s *Scheduler) run(ctx context.Context, ticker Ticker) {
	for {
		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			s.Stop()
			return
		case <-ticker.C():
			s.Tick()
		}
	}
}

// Tick runs a single dispatcher iteration: offers queued tasks in
// descending priority order while the running set is below the concurrency
// limit. Conditional predicates are re-checked at offer time since they may
// have flipped since the task was queued. Returns the number of tasks
// dispatched.
//
// Exported so tests and embedders can drive the dispatcher manually.
func (s *Scheduler) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0
	}

	// Promote pending tasks whose readiness changed outside the completion
	// path, e.g. a conditional predicate flipping true.
	for id, task := range s.graph.tasks {
		if task.Status != TaskPending || s.retry.waiting(id) {
			continue
		}
		if s.graph.CanExecute(id, s.pred) {
			now := s.clock.Now()
			task.Status = TaskQueued
			task.LastUpdated = now
			s.ready.push(id, task.Priority)
			s.publishTask(events.TaskQueuedEvent{ID: id, Priority: task.Priority, Timestamp: now})
		}
	}

	dispatched := 0
	for _, id := range s.ready.ids() {
		if len(s.running) >= s.cfg.ConcurrencyLimit {
			break
		}

		task, exists := s.graph.get(id)
		if !exists {
			s.ready.remove(id)
			continue
		}
		if !s.graph.CanExecute(id, s.pred) {
			// Predicate flipped false; stays queued, skipped this tick
			continue
		}

		select {
		case s.dispatch <- cloneTask(task):
		default:
			// Stream full: leave the task queued, back-pressure ends the tick
			return dispatched
		}

		s.ready.remove(id)
		s.running[id] = struct{}{}
		dispatched++
		s.publishTask(events.TaskDispatchedEvent{ID: id, Timestamp: s.clock.Now()})
	}

	return dispatched
}

// StartTask records that a worker accepted a task: creates the execution
// record and moves the task to in_progress. Rejects starts for unknown
// tasks, tasks with an active execution, terminal or already-running tasks,
// unmet dependencies, and starts past the concurrency limit.
func (s *Scheduler) StartTask(taskID, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.graph.get(taskID)
	if !exists {
		delete(s.running, taskID)
		return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if s.executions[taskID] != nil {
		return fmt.Errorf("%w: task %q already has an active execution", ErrInvalidTransition, taskID)
	}
	switch task.Status {
	case TaskInProgress, TaskCompleted, TaskFailed:
		s.releaseDispatchLocked(task)
		return fmt.Errorf("%w: task %q is %s", ErrInvalidTransition, taskID, task.Status)
	}
	if !s.graph.CanExecute(taskID, s.pred) {
		s.releaseDispatchLocked(task)
		return fmt.Errorf("%w: task %q", ErrDependencyUnmet, taskID)
	}

	if _, dispatched := s.running[taskID]; !dispatched {
		// Direct start without a dispatch offer still honors the bound
		if len(s.running) >= s.cfg.ConcurrencyLimit {
			return fmt.Errorf("%w: task %q", ErrConcurrencyLimit, taskID)
		}
		s.running[taskID] = struct{}{}
		s.ready.remove(taskID)
	}

	// A direct start supersedes any pending backoff requeue
	s.retry.cancel(taskID)

	now := s.clock.Now()
	exec := &Execution{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		WorkerID:  workerID,
		StartTime: now,
		Status:    ExecutionRunning,
	}
	s.executions[taskID] = exec

	task.Status = TaskInProgress
	if task.StartedAt.IsZero() {
		task.StartedAt = now
	}
	task.LastUpdated = now

	s.publishTask(events.TaskStartedEvent{ID: taskID, ExecutionID: exec.ID, WorkerID: workerID, Timestamp: now})
	return nil
}

// Progress records worker-reported progress on the active execution.
// Percent is clamped to [0,100]; a non-empty message is appended to the
// execution log. No state-machine effect.
func (s *Scheduler) Progress(taskID string, percent int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec := s.executions[taskID]
	if exec == nil {
		return fmt.Errorf("%w: no active execution for task %q", ErrInvalidTransition, taskID)
	}

	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	now := s.clock.Now()
	exec.Progress = percent
	if message != "" {
		exec.Logs = append(exec.Logs, LogLine{Timestamp: now, Message: message})
	}
	if task, exists := s.graph.get(taskID); exists {
		task.LastUpdated = now
	}

	s.publishTask(events.TaskProgressEvent{ID: taskID, Percent: percent, Message: message, Timestamp: now})
	return nil
}

// RecordMetric appends a timestamped numeric sample to the active
// execution.
func (s *Scheduler) RecordMetric(taskID, name string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec := s.executions[taskID]
	if exec == nil {
		return fmt.Errorf("%w: no active execution for task %q", ErrInvalidTransition, taskID)
	}

	exec.Metrics = append(exec.Metrics, MetricSample{Timestamp: s.clock.Now(), Name: name, Value: value})
	return nil
}

// Complete records successful completion of the active execution: appends
// artifacts, finalizes the execution, releases the concurrency slot, and
// queues every dependent whose remaining dependencies are now satisfied.
func (s *Scheduler) Complete(taskID string, artifacts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec := s.executions[taskID]
	if exec == nil {
		return fmt.Errorf("%w: no active execution for task %q", ErrInvalidTransition, taskID)
	}
	task, _ := s.graph.get(taskID)

	now := s.clock.Now()
	exec.Status = ExecutionCompleted
	exec.EndTime = now
	exec.Progress = 100

	task.Status = TaskCompleted
	task.CompletedAt = now
	task.LastUpdated = now
	task.Artifacts = append(task.Artifacts, artifacts...)

	s.retire(taskID, exec)
	s.retry.cancel(taskID)

	s.publishTask(events.TaskCompletedEvent{
		ID:          taskID,
		ExecutionID: exec.ID,
		Artifacts:   append([]string(nil), artifacts...),
		Duration:    now.Sub(exec.StartTime),
		Timestamp:   now,
	})

	// Dependents become ready strictly after this completion
	for _, depID := range s.graph.DependentsOf(taskID) {
		dep, exists := s.graph.get(depID)
		if !exists || dep.Status != TaskPending {
			continue
		}
		if s.retry.waiting(depID) {
			// Sitting out a retry backoff; the timer requeues it
			continue
		}
		if s.graph.CanExecute(depID, s.pred) {
			dep.Status = TaskQueued
			dep.LastUpdated = now
			s.ready.push(depID, dep.Priority)
			s.publishTask(events.TaskQueuedEvent{ID: depID, Priority: dep.Priority, Timestamp: now})
		}
	}

	s.publishProgressLocked(now)
	return nil
}

// Fail records a failed execution. Retryable failures within the attempt
// budget put the task back to pending and schedule a re-queue after an
// exponential backoff delay; everything else is a permanent failure that
// escalates to the planning collaborator.
func (s *Scheduler) Fail(taskID, reason string, retryable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec := s.executions[taskID]
	if exec == nil {
		return fmt.Errorf("%w: no active execution for task %q", ErrInvalidTransition, taskID)
	}
	task, _ := s.graph.get(taskID)

	now := s.clock.Now()
	exec.Status = ExecutionFailed
	exec.EndTime = now
	s.retire(taskID, exec)

	if retryable {
		if delay, ok := s.retry.next(taskID); ok {
			attempt := s.retry.attemptsFor(taskID)

			task.Status = TaskPending
			task.LastUpdated = now
			task.Issues = append(task.Issues, Issue{
				Message:   fmt.Sprintf("attempt %d failed: %s", attempt, reason),
				Severity:  "medium",
				Timestamp: now,
			})

			s.publishTask(events.TaskFailedEvent{ID: taskID, ExecutionID: exec.ID, Reason: reason, Timestamp: now})
			s.publishTask(events.TaskRetryEvent{ID: taskID, Attempt: attempt, Delay: delay, Timestamp: now})

			if !s.stopped {
				id := taskID
				s.retry.setTimer(taskID, s.clock.AfterFunc(delay, func() { s.requeue(id) }))
			}

			s.publishProgressLocked(now)
			return nil
		}
	}

	task.Status = TaskFailed
	task.Escalated = true
	task.LastUpdated = now
	task.Issues = append(task.Issues, Issue{
		Message:   reason,
		Severity:  "high",
		Escalate:  true,
		Timestamp: now,
	})

	s.publishTask(events.TaskFailedEvent{ID: taskID, ExecutionID: exec.ID, Reason: reason, Permanent: true, Timestamp: now})
	s.publishTask(events.TaskEscalatedEvent{ID: taskID, Reason: reason, Timestamp: now})
	s.publishProgressLocked(now)
	return nil
}

// releaseDispatchLocked returns a rejected dispatch reservation. A task
// offered by Tick holds a running-set slot until a worker accepts it; when
// the start is refused (readiness changed in the dispatch window, or the
// task reached a terminal state) no execution will ever release the slot,
// so it must be freed here. A still-queued task is demoted to pending so
// the promotion pass re-queues it once it is eligible again. Caller holds
// the mutex.
func (s *Scheduler) releaseDispatchLocked(task *Task) {
	if _, dispatched := s.running[task.ID]; !dispatched {
		return
	}
	delete(s.running, task.ID)

	if task.Status == TaskQueued {
		task.Status = TaskPending
		task.LastUpdated = s.clock.Now()
	}
}

// retire moves an execution out of the active set and releases the
// concurrency slot. Caller holds the mutex.
func (s *Scheduler) retire(taskID string, exec *Execution) {
	delete(s.executions, taskID)
	delete(s.running, taskID)
	s.history[taskID] = append(s.history[taskID], exec)
}

// requeue fires when a retry backoff elapses: the task re-enters the ready
// queue if its dependencies still hold, otherwise it stays pending until a
// dependency completion queues it.
func (s *Scheduler) requeue(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retry.clearTimer(taskID)

	if s.stopped {
		return
	}
	task, exists := s.graph.get(taskID)
	if !exists || task.Status != TaskPending {
		return
	}

	if s.graph.CanExecute(taskID, s.pred) {
		now := s.clock.Now()
		task.Status = TaskQueued
		task.LastUpdated = now
		s.ready.push(taskID, task.Priority)
		s.publishTask(events.TaskQueuedEvent{ID: taskID, Priority: task.Priority, Timestamp: now})
	}
}

// Stop halts the dispatcher, cancels all pending backoff timers, and closes
// the dispatch stream. In-flight executions are left untouched; their late
// terminal transitions are still accepted. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true

	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.retry.cancelAll()
	close(s.quit)
	close(s.dispatch)
}

// Snapshot returns per-status task counts and overall completion percent.
func (s *Scheduler) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Scheduler) snapshotLocked() Status {
	var st Status
	for id, task := range s.graph.tasks {
		st.Total++
		switch task.Status {
		case TaskPending:
			st.Pending++
			if s.retry.waiting(id) {
				st.Retrying++
			}
		case TaskQueued:
			st.Queued++
		case TaskInProgress:
			st.Running++
		case TaskCompleted:
			st.Completed++
		case TaskFailed:
			st.Failed++
		}
	}
	if st.Total > 0 {
		st.ProgressPercent = float64(st.Completed) / float64(st.Total) * 100
	}
	return st
}

// Get returns a copy of a task record.
func (s *Scheduler) Get(taskID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.graph.Get(taskID)
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	return task, nil
}

// Tasks returns copies of all task records.
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Tasks()
}

// Dependencies returns the dependency edges declared by a task.
func (s *Scheduler) Dependencies(taskID string) []Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Dependencies(taskID)
}

// Attempts returns the recorded retry attempt count for a task.
func (s *Scheduler) Attempts(taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retry.attemptsFor(taskID)
}

// Executions returns every execution attempt for a task, oldest first,
// including the active one if any.
func (s *Scheduler) Executions(taskID string) []*Execution {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Execution, 0, len(s.history[taskID])+1)
	for _, exec := range s.history[taskID] {
		out = append(out, cloneExecution(exec))
	}
	if exec := s.executions[taskID]; exec != nil {
		out = append(out, cloneExecution(exec))
	}
	return out
}

// Logs returns all execution log lines for a task across attempts.
func (s *Scheduler) Logs(taskID string) []LogLine {
	var lines []LogLine
	for _, exec := range s.Executions(taskID) {
		lines = append(lines, exec.Logs...)
	}
	return lines
}

// Metrics returns all metric samples for a task across attempts.
func (s *Scheduler) Metrics(taskID string) []MetricSample {
	var samples []MetricSample
	for _, exec := range s.Executions(taskID) {
		samples = append(samples, exec.Metrics...)
	}
	return samples
}

// CriticalPath returns the maximum-duration chain of sequentially dependent
// tasks and its total estimated hours.
func (s *Scheduler) CriticalPath() ([]*Task, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.CriticalPath()
}

func (s *Scheduler) publishTask(event events.Event) {
	s.bus.Publish(events.TopicTask, event)
}

func (s *Scheduler) publishProgressLocked(now time.Time) {
	st := s.snapshotLocked()
	s.bus.Publish(events.TopicScheduler, events.SchedulerProgressEvent{
		Total:     st.Total,
		Pending:   st.Pending,
		Queued:    st.Queued,
		Running:   st.Running,
		Completed: st.Completed,
		Failed:    st.Failed,
		Retrying:  st.Retrying,
		Timestamp: now,
	})
}
