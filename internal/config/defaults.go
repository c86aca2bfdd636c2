package config

// DefaultConfig returns the default configuration.
func DefaultConfig() *TaskflowConfig {
	return &TaskflowConfig{
		Scheduler: SchedulerConfig{
			ConcurrencyLimit: 5,
			TickInterval:     "1s",
			MaxRetries:       3,
			DispatchBuffer:   16,
		},
		Worker: WorkerConfig{
			Workers: 4,
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    ".taskflow/journal.db",
		},
	}
}
