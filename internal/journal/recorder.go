package journal

import (
	"context"
	"log"

	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/scheduler"
)

// Recorder subscribes to the scheduler's event bus and mirrors the task
// lifecycle into the store. Store errors are logged, never propagated: the
// journal must not stall or fail the scheduler.
type Recorder struct {
	store Store
	sched *scheduler.Scheduler
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store, sched *scheduler.Scheduler) *Recorder {
	return &Recorder{store: store, sched: sched}
}

// Run consumes bus events until the bus closes or ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	ch := r.sched.Bus().SubscribeAll(512)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(ctx, event)
		}
	}
}

func (r *Recorder) handle(ctx context.Context, event events.Event) {
	switch e := event.(type) {
	case events.TaskAddedEvent:
		task, err := r.sched.Get(e.ID)
		if err != nil {
			return
		}
		if err := r.store.SaveTask(ctx, task, r.sched.Dependencies(e.ID)); err != nil {
			log.Printf("WARNING: journal: failed to save task %q: %v", e.ID, err)
		}

	case events.TaskQueuedEvent:
		r.updateStatus(ctx, e.ID)

	case events.TaskStartedEvent:
		r.updateStatus(ctx, e.ID)
		r.recordLatestExecution(ctx, e.ID)

	case events.TaskProgressEvent:
		if e.Message != "" {
			if err := r.store.AppendLog(ctx, e.ID, e.Message, e.Timestamp); err != nil {
				log.Printf("WARNING: journal: failed to append log for task %q: %v", e.ID, err)
			}
		}

	case events.TaskCompletedEvent:
		r.updateStatus(ctx, e.ID)
		r.recordLatestExecution(ctx, e.ID)

	case events.TaskFailedEvent:
		r.updateStatus(ctx, e.ID)
		r.recordLatestExecution(ctx, e.ID)
		r.recordLatestIssue(ctx, e.ID)
	}
}

func (r *Recorder) updateStatus(ctx context.Context, taskID string) {
	task, err := r.sched.Get(taskID)
	if err != nil {
		return
	}
	if err := r.store.UpdateTaskStatus(ctx, taskID, task.Status); err != nil {
		log.Printf("WARNING: journal: failed to update status for task %q: %v", taskID, err)
	}
}

func (r *Recorder) recordLatestExecution(ctx context.Context, taskID string) {
	execs := r.sched.Executions(taskID)
	if len(execs) == 0 {
		return
	}
	if err := r.store.RecordExecution(ctx, execs[len(execs)-1]); err != nil {
		log.Printf("WARNING: journal: failed to record execution for task %q: %v", taskID, err)
	}
}

func (r *Recorder) recordLatestIssue(ctx context.Context, taskID string) {
	task, err := r.sched.Get(taskID)
	if err != nil || len(task.Issues) == 0 {
		return
	}
	issue := task.Issues[len(task.Issues)-1]
	if err := r.store.RecordIssue(ctx, taskID, issue); err != nil {
		log.Printf("WARNING: journal: failed to record issue for task %q: %v", taskID, err)
	}
}
