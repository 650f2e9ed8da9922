package driving

import (
	"context"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
)

// Agent runs the synchronisation engine for every configured connector.
type Agent interface {
	// Run starts the upload pipeline and the scheduled tasks and blocks until
	// ctx is cancelled. In-flight attempts get the configured grace period.
	Run(ctx context.Context) error

	// Status reports whether the agent is synchronising.
	Status() domain.AgentStatus
}

// CredentialRenewer replaces the client secret in the agent's configuration.
type CredentialRenewer interface {
	// Renew fetches a new secret, rewrites the configuration resource that
	// defines it and reloads the configuration.
	Renew(ctx context.Context) error
}

// TaskHistory exposes recorded runs of scheduled tasks.
type TaskHistory interface {
	// Tasks returns the state of every known task.
	Tasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// History returns the most recent runs of a task, newest first.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)
}
