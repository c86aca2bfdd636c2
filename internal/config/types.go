package config

import (
	"fmt"
	"time"
)

// SchedulerConfig tunes the dispatcher and retry manager.
type SchedulerConfig struct {
	ConcurrencyLimit int    `json:"concurrency_limit,omitempty"` // Max concurrently running tasks
	TickInterval     string `json:"tick_interval,omitempty"`     // Dispatcher period, Go duration string
	MaxRetries       int    `json:"max_retries,omitempty"`       // Retry budget per task
	DispatchBuffer   int    `json:"dispatch_buffer,omitempty"`   // Dispatch stream capacity
}

// TickDuration parses TickInterval. An empty interval returns zero, which
// the scheduler replaces with its default.
func (c SchedulerConfig) TickDuration() (time.Duration, error) {
	if c.TickInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return 0, fmt.Errorf("parsing tick_interval %q: %w", c.TickInterval, err)
	}
	return d, nil
}

// WorkerConfig tunes the worker pool.
type WorkerConfig struct {
	Workers int `json:"workers,omitempty"` // Max concurrent task executions
}

// JournalConfig controls the SQLite execution journal.
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"` // Database file path
}

// TaskflowConfig is the top-level configuration.
type TaskflowConfig struct {
	Scheduler SchedulerConfig `json:"scheduler"`
	Worker    WorkerConfig    `json:"worker"`
	Journal   JournalConfig   `json:"journal"`
}
