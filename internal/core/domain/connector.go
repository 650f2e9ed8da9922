package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects which environment of the exchange service a connector talks to.
type Mode string

// Connector modes.
const (
	ModeTest       Mode = "TEST"
	ModeProduction Mode = "PRODUCTION"
	ModeNone       Mode = "NONE"
)

// IsValid returns true if the mode is recognised.
func (m Mode) IsValid() bool {
	switch m {
	case ModeTest, ModeProduction, ModeNone:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m Mode) String() string {
	return string(m)
}

// Connector is one tenant/mode synchronisation unit.
// Connectors are immutable once loaded; a configuration reload replaces them wholesale.
type Connector struct {
	// ID identifies the tenant at the exchange service.
	ID string `yaml:"id"`

	// Mode selects the exchange environment.
	Mode Mode `yaml:"mode"`

	// ContentType is sent with every uploaded document.
	ContentType string `yaml:"content-type"`

	// SourceFolder holds outbound documents waiting to be uploaded.
	SourceFolder string `yaml:"source-folder"`

	// TargetFolder receives inbound documents.
	TargetFolder string `yaml:"target-folder"`

	// SubFolders routes inbound documents by document type into
	// sub-folders of TargetFolder. Optional.
	SubFolders map[string]string `yaml:"sub-folders,omitempty"`
}

// Key returns the (id, mode) pair that must be unique across a configuration.
func (c Connector) Key() string {
	return c.ID + "/" + string(c.Mode)
}

// String returns a short human-readable identifier for log lines.
func (c Connector) String() string {
	return fmt.Sprintf("%s[%s]", c.ID, c.Mode)
}

// TargetFor returns the folder a document of the given type is delivered to.
// Unknown or empty types go to TargetFolder.
func (c Connector) TargetFor(documentType string) string {
	if documentType == "" {
		return c.TargetFolder
	}
	sub, ok := c.SubFolders[documentType]
	if !ok || sub == "" {
		return c.TargetFolder
	}
	if filepath.IsAbs(sub) {
		return filepath.Clean(sub)
	}
	return filepath.Join(c.TargetFolder, sub)
}

// Validate checks a single connector in isolation.
func (c Connector) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: connector id is required", ErrConfiguration)
	}
	if !c.Mode.IsValid() {
		return fmt.Errorf("%w: connector %s: unknown mode %q", ErrConfiguration, c.ID, c.Mode)
	}
	if c.SourceFolder == "" {
		return fmt.Errorf("%w: connector %s: source-folder is required", ErrConfiguration, c)
	}
	if c.TargetFolder == "" {
		return fmt.Errorf("%w: connector %s: target-folder is required", ErrConfiguration, c)
	}
	if !filepath.IsAbs(c.SourceFolder) || !filepath.IsAbs(c.TargetFolder) {
		return fmt.Errorf("%w: connector %s: folders must be absolute paths", ErrConfiguration, c)
	}
	return nil
}

// FindBySource returns the first connector whose source folder is dir.
func FindBySource(connectors []Connector, dir string) (Connector, bool) {
	dir = filepath.Clean(dir)
	for _, c := range connectors {
		if filepath.Clean(c.SourceFolder) == dir {
			return c, true
		}
	}
	return Connector{}, false
}

// validateConnectors enforces the cross-connector invariants: unique (id, mode),
// unique source folders, and no folder used both as a source and a target.
func validateConnectors(connectors []Connector) error {
	keys := make(map[string]bool, len(connectors))
	sources := make(map[string]string, len(connectors))
	targets := make(map[string]string, len(connectors))

	for _, c := range connectors {
		if err := c.Validate(); err != nil {
			return err
		}
		if keys[c.Key()] {
			return fmt.Errorf("%w: duplicate connector %s", ErrConfiguration, c)
		}
		keys[c.Key()] = true

		src := filepath.Clean(c.SourceFolder)
		if other, ok := sources[src]; ok {
			return fmt.Errorf("%w: connectors %s and %s share source folder %s", ErrConfiguration, other, c, src)
		}
		sources[src] = c.String()
		targets[filepath.Clean(c.TargetFolder)] = c.String()
	}

	for dir, owner := range sources {
		if other, ok := targets[dir]; ok {
			return fmt.Errorf("%w: folder %s is source of %s and target of %s", ErrConfiguration, dir, owner, other)
		}
	}
	return nil
}
