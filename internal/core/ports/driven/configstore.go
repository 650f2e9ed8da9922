package driven

import "github.com/custodia-labs/exchange-agent/internal/core/domain"

// ConfigSource is one layer of configuration (a file, the environment).
// Keys use dot notation, e.g. "api.client-secret".
type ConfigSource interface {
	// Name identifies the source in log lines and errors.
	Name() string

	// Values returns the flattened key/value pairs of the source.
	Values() map[string]any

	// Origin reports where key is defined in this source.
	// Returns false if the source does not define key.
	Origin(key string) (domain.CredentialOrigin, bool)
}

// ConfigProvider supplies the current configuration and reloads it on request.
// The returned *domain.Config must be treated as immutable; Reload swaps in
// a new value rather than mutating the old one.
type ConfigProvider interface {
	// Current returns the configuration in force.
	Current() *domain.Config

	// Reload re-reads every source. On failure the previous configuration stays in force.
	Reload() error

	// Sources returns the configuration sources in precedence order (lowest first).
	Sources() []ConfigSource
}

// ConfigWriter rewrites configuration files in place.
type ConfigWriter interface {
	// Writable checks that path is an existing regular file the process may write.
	Writable(path string) error

	// Rewrite replaces the value of key in the file at path, preserving all other content.
	Rewrite(path string, kind domain.FileKind, key, value string) error
}
