package journal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aristath/taskflow/internal/scheduler"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestSaveTaskRoundTrip verifies upsert behavior for tasks and their
// dependency edges.
func TestSaveTaskRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dep := &scheduler.Task{ID: "setup", Title: "Set up repo", Type: scheduler.TypeCoding}
	if err := store.SaveTask(ctx, dep, nil); err != nil {
		t.Fatalf("SaveTask(setup) error = %v", err)
	}

	task := &scheduler.Task{
		ID:             "build",
		Title:          "Build service",
		Type:           scheduler.TypeCoding,
		Priority:       7,
		EstimatedHours: 3.5,
		Status:         scheduler.TaskPending,
	}
	deps := []scheduler.Edge{{DependsOn: "setup", Kind: scheduler.EdgeSequential}}
	if err := store.SaveTask(ctx, task, deps); err != nil {
		t.Fatalf("SaveTask(build) error = %v", err)
	}

	// Saving again with changed fields must update in place
	task.Priority = 9
	if err := store.SaveTask(ctx, task, deps); err != nil {
		t.Fatalf("second SaveTask(build) error = %v", err)
	}

	if err := store.UpdateTaskStatus(ctx, "build", scheduler.TaskQueued); err != nil {
		t.Errorf("UpdateTaskStatus() error = %v", err)
	}
}

func TestUpdateTaskStatusUnknownTask(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateTaskStatus(context.Background(), "ghost", scheduler.TaskQueued)
	if err == nil {
		t.Fatal("UpdateTaskStatus(ghost) succeeded, want error")
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error %q doesn't name the task", err)
	}
}

// TestRecordExecutionUpsert verifies the start and terminal writes for one
// attempt land on the same row.
func TestRecordExecutionUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &scheduler.Task{ID: "A", Title: "Task A"}
	if err := store.SaveTask(ctx, task, nil); err != nil {
		t.Fatalf("SaveTask() error = %v", err)
	}

	started := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	exec := &scheduler.Execution{
		ID:        "exec-1",
		TaskID:    "A",
		WorkerID:  "worker-1",
		Status:    scheduler.ExecutionRunning,
		Progress:  0,
		StartTime: started,
	}
	if err := store.RecordExecution(ctx, exec); err != nil {
		t.Fatalf("RecordExecution() error = %v", err)
	}

	exec.Status = scheduler.ExecutionCompleted
	exec.Progress = 100
	exec.EndTime = started.Add(5 * time.Minute)
	if err := store.RecordExecution(ctx, exec); err != nil {
		t.Fatalf("second RecordExecution() error = %v", err)
	}

	execs, err := store.ListExecutions(ctx, "A")
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("ListExecutions() has %d rows, want 1", len(execs))
	}
	got := execs[0]
	if got.Status != scheduler.ExecutionCompleted || got.Progress != 100 {
		t.Errorf("execution = %+v, want completed at 100%%", got)
	}
	if got.EndTime.IsZero() {
		t.Error("EndTime not recorded")
	}
}

func TestLogsAndIssues(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &scheduler.Task{ID: "A", Title: "Task A"}
	if err := store.SaveTask(ctx, task, nil); err != nil {
		t.Fatalf("SaveTask() error = %v", err)
	}

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, msg := range []string{"step 1", "step 2"} {
		if err := store.AppendLog(ctx, "A", msg, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("AppendLog() error = %v", err)
		}
	}

	lines, err := store.ListLogs(ctx, "A")
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if len(lines) != 2 || lines[0].Message != "step 1" {
		t.Errorf("ListLogs() = %v, want [step 1, step 2]", lines)
	}

	issue := scheduler.Issue{
		Message:   "attempt 1 failed: flaky tool",
		Severity:  "medium",
		Timestamp: base,
	}
	if err := store.RecordIssue(ctx, "A", issue); err != nil {
		t.Fatalf("RecordIssue() error = %v", err)
	}
	escalated := scheduler.Issue{
		Message:   "retries exhausted",
		Severity:  "high",
		Escalate:  true,
		Timestamp: base.Add(time.Minute),
	}
	if err := store.RecordIssue(ctx, "A", escalated); err != nil {
		t.Fatalf("RecordIssue() error = %v", err)
	}

	issues, err := store.ListIssues(ctx, "A")
	if err != nil {
		t.Fatalf("ListIssues() error = %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("ListIssues() has %d rows, want 2", len(issues))
	}
	if issues[0].Escalate || !issues[1].Escalate {
		t.Errorf("issues = %+v, want escalate only on the second", issues)
	}
}
