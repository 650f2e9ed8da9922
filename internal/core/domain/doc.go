// Package domain defines the core business entities of the exchange agent.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Connector: A tenant/mode pair with its source and target folders
//   - Config: The immutable agent configuration
//   - RetryPolicy: The ordered backoff schedule for remote calls
//   - UploadResult, DownloadResult: Tagged outcomes of remote calls
//   - CredentialOrigin: The resource backing the client secret
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
