package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval is the fixed delay between the end of one run and the start of the next.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string

	// StartedAt is when the task started.
	StartedAt time.Time

	// EndedAt is when the task completed.
	EndedAt time.Time

	// Success indicates whether the task completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string

	// ItemsProcessed is a count of items handled (e.g., documents downloaded).
	ItemsProcessed int

	// TraceID is sent with every remote call the run made.
	TraceID string
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// TaskConfigs holds per-task configuration.
	TaskConfigs map[string]TaskConfig
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	// Enabled indicates whether this task should run.
	Enabled bool

	// Interval is the fixed delay between runs.
	// Zero runs the task once at startup only.
	Interval time.Duration
}

// GetTaskConfig returns the configuration for a specific task.
// Returns a zero TaskConfig if the task is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// SchedulerConfigFrom derives the scheduler configuration from the agent configuration.
func SchedulerConfigFrom(cfg *Config) SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDDocumentDownload: {
				Enabled:  cfg.Download.Enabled && len(cfg.Connectors) > 0,
				Interval: cfg.Download.ScheduleDelay,
			},
			TaskIDCredentialRenewal: {
				Enabled:  cfg.Credential.Renewal.Enabled,
				Interval: cfg.Credential.Renewal.Interval,
			},
		},
	}
}

// Task IDs for built-in tasks.
const (
	TaskIDDocumentDownload  = "document-download"
	TaskIDCredentialRenewal = "credential-renewal"
)

// TaskName returns the display name of a built-in task.
func TaskName(taskID string) string {
	switch taskID {
	case TaskIDDocumentDownload:
		return "Document Download"
	case TaskIDCredentialRenewal:
		return "Credential Renewal"
	default:
		return taskID
	}
}
