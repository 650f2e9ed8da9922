// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The upload side is an InFlightCache in front of an UploadPipeline that
// dispatches files to an UploadHandler on a bounded pool. The download side
// and credential renewal run as Scheduler tasks. Agent ties both together.
package services
