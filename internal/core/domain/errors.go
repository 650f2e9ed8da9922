package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Configuration Errors.

	// ErrConfiguration indicates the configuration is invalid or ambiguous.
	// The process must not proceed with it.
	ErrConfiguration = errors.New("configuration error")

	// ErrAmbiguousOrigin indicates zero or several origins were found for a key.
	ErrAmbiguousOrigin = errors.New("ambiguous configuration origin")

	// ErrOriginNotWritable indicates the origin is not a writable file.
	ErrOriginNotWritable = errors.New("configuration origin not writable")

	// ErrUnsupportedFileKind indicates a configuration file that cannot be rewritten.
	ErrUnsupportedFileKind = errors.New("unsupported configuration file kind")

	// Remote Errors.

	// ErrRemote indicates the exchange service rejected or failed a request.
	ErrRemote = errors.New("remote error")

	// ErrRenewalDisabled indicates credential renewal is switched off.
	ErrRenewalDisabled = errors.New("credential renewal disabled")

	// Local I/O Errors.

	// ErrTargetNotWritable indicates a connector's target folder is missing or read-only.
	ErrTargetNotWritable = errors.New("target folder not writable")
)
