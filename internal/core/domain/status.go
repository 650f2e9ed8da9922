package domain

// AgentStatus summarises whether the agent is synchronising.
type AgentStatus string

// Agent statuses.
const (
	// StatusSynchronizing means at least one sync direction is enabled and running.
	StatusSynchronizing AgentStatus = "SYNCHRONIZING"

	// StatusDisabled means both upload and download are switched off in configuration.
	StatusDisabled AgentStatus = "DISABLED"

	// StatusStopped means the agent is not running.
	StatusStopped AgentStatus = "STOPPED"
)
