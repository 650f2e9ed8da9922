// Package file provides the file-based configuration adapters.
//
// Adapters:
//   - Provider: merges YAML, properties and TOML files plus the environment
//     into a validated domain.Config, reloadable at runtime
//   - FileSource, EnvSource: configuration sources that report where a key is defined
//   - Writer: rewrites a single value in a YAML or properties file in place
package file
