// Package sqlite provides the SQLite-backed scheduler store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It persists:
//
//   - ScheduledTask: state of the download and credential renewal tasks
//   - TaskResult: the most recent runs of each task
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// The database is stored as history.db in agent.state-dir. Without a state
// directory the agent keeps history in memory instead.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
