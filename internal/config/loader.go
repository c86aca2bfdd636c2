package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config,
// defaults. Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*TaskflowConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.taskflow/config.json
// Project: .taskflow/config.json (relative to cwd)
func LoadDefault() (*TaskflowConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".taskflow", "config.json")
	projectPath := filepath.Join(".taskflow", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges its set fields into
// the base config. Missing files are silently skipped.
func mergeConfigFile(base *TaskflowConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded TaskflowConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	mergeConfig(base, &loaded)
	return nil
}

// mergeConfig overlays every set (non-zero) field of loaded onto base.
// Journal.Enabled is a bool and always taken from loaded when the journal
// section carries a path, so a project file can switch the journal on.
func mergeConfig(base, loaded *TaskflowConfig) {
	if loaded.Scheduler.ConcurrencyLimit > 0 {
		base.Scheduler.ConcurrencyLimit = loaded.Scheduler.ConcurrencyLimit
	}
	if loaded.Scheduler.TickInterval != "" {
		base.Scheduler.TickInterval = loaded.Scheduler.TickInterval
	}
	if loaded.Scheduler.MaxRetries > 0 {
		base.Scheduler.MaxRetries = loaded.Scheduler.MaxRetries
	}
	if loaded.Scheduler.DispatchBuffer > 0 {
		base.Scheduler.DispatchBuffer = loaded.Scheduler.DispatchBuffer
	}

	if loaded.Worker.Workers > 0 {
		base.Worker.Workers = loaded.Worker.Workers
	}

	if loaded.Journal.Path != "" {
		base.Journal.Path = loaded.Journal.Path
		base.Journal.Enabled = loaded.Journal.Enabled
	} else if loaded.Journal.Enabled {
		base.Journal.Enabled = true
	}
}
