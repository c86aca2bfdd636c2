package scheduler

import "time"

// ExecutionStatus represents the state of one dispatch attempt.
type ExecutionStatus int

const (
	ExecutionRunning ExecutionStatus = iota
	ExecutionCompleted
	ExecutionFailed
	ExecutionPaused
)

// String returns a human-readable execution status name.
func (s ExecutionStatus) String() string {
	switch s {
	case ExecutionRunning:
		return "running"
	case ExecutionCompleted:
		return "completed"
	case ExecutionFailed:
		return "failed"
	case ExecutionPaused:
		return "paused"
	}
	return "unknown"
}

// LogLine is a timestamped log entry attached to an execution.
type LogLine struct {
	Timestamp time.Time
	Message   string
}

// MetricSample is a timestamped numeric sample attached to an execution.
type MetricSample struct {
	Timestamp time.Time
	Name      string
	Value     float64
}

// Execution records one in-flight dispatch attempt of a task. The terminal
// status is set exactly once by Complete or Fail; logs and metrics are
// appended only while the execution is running.
type Execution struct {
	ID        string // Unique per attempt
	TaskID    string
	WorkerID  string
	StartTime time.Time
	EndTime   time.Time // Zero while running
	Status    ExecutionStatus
	Progress  int // 0-100
	Logs      []LogLine
	Metrics   []MetricSample
}

func cloneExecution(exec *Execution) *Execution {
	if exec == nil {
		return nil
	}

	cp := *exec
	if exec.Logs != nil {
		cp.Logs = append([]LogLine(nil), exec.Logs...)
	}
	if exec.Metrics != nil {
		cp.Metrics = append([]MetricSample(nil), exec.Metrics...)
	}
	return &cp
}
