package domain

import (
	"path/filepath"
	"strings"
)

// FileKind identifies the syntax of a configuration file.
type FileKind string

// File kinds that support in-place secret rewrite.
const (
	FileKindYAML       FileKind = "YAML"
	FileKindProperties FileKind = "PROPERTIES"
)

// FileKindOf derives the file kind from a path's extension.
// Returns false for extensions that cannot be rewritten.
func FileKindOf(path string) (FileKind, bool) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "yaml", "yml":
		return FileKindYAML, true
	case "properties":
		return FileKindProperties, true
	default:
		return "", false
	}
}

// CredentialOrigin is the resource currently supplying a configuration value.
// Origins are resolved afresh for every renewal; they are never cached.
type CredentialOrigin struct {
	// Source names the configuration source that reported the origin.
	Source string

	// Location is the file path, or a descriptive name for non-file sources.
	Location string

	// FileBacked is true when Location is a file on disk.
	FileBacked bool
}

func (o CredentialOrigin) String() string {
	return o.Location
}
