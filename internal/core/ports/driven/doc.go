// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - ExchangeClient: The remote document-exchange service
//   - ConfigProvider: Current configuration and reload
//   - ConfigWriter: In-place rewrite of configuration files
//   - Trigger: Candidate paths for upload (watcher or poller)
//   - SchedulerStore: Task state and run history
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
