package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
)

// Ensure sources implement the interface.
var (
	_ driven.ConfigSource = (*FileSource)(nil)
	_ driven.ConfigSource = (*EnvSource)(nil)
)

// FileSource is a configuration file in YAML, properties or TOML syntax.
type FileSource struct {
	path   string
	values map[string]any
}

// LoadFileSource reads and parses the file at path. The syntax is chosen by extension.
func LoadFileSource(path string) (*FileSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrConfiguration, abs, err)
	}

	var values map[string]any
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".yml", ".yaml":
		values, err = parseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrConfiguration, abs, err)
		}
	case ".toml":
		var tree map[string]any
		if err := toml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrConfiguration, abs, err)
		}
		values = flattenMap(tree, "")
	case ".properties":
		values, err = parseProperties(data)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrConfiguration, abs, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s: unsupported configuration file type", domain.ErrConfiguration, abs)
	}

	if values == nil {
		values = make(map[string]any)
	}
	return &FileSource{path: abs, values: values}, nil
}

// parseYAML flattens every document of a YAML stream. Later documents win
// the same way later files do.
func parseYAML(data []byte) (map[string]any, error) {
	values := make(map[string]any)
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var tree map[string]any
		err := dec.Decode(&tree)
		if errors.Is(err, io.EOF) {
			return values, nil
		}
		if err != nil {
			return nil, err
		}
		mergeFile(values, flattenMap(tree, ""))
	}
}

// Name returns the source name.
func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Path returns the absolute file path.
func (s *FileSource) Path() string {
	return s.path
}

// Values returns the flattened key/value pairs.
func (s *FileSource) Values() map[string]any {
	return s.values
}

// Origin reports the file if it defines key.
func (s *FileSource) Origin(key string) (domain.CredentialOrigin, bool) {
	if _, ok := s.values[key]; !ok {
		return domain.CredentialOrigin{}, false
	}
	return domain.CredentialOrigin{Source: s.Name(), Location: s.path, FileBacked: true}, true
}

// EnvSource reads configuration keys from environment variables.
// Only keys known at construction are looked up.
type EnvSource struct {
	prefix string
	keys   []string
	lookup func(string) (string, bool)
}

// NewEnvSource creates an environment source for the given keys.
func NewEnvSource(prefix string, keys []string) *EnvSource {
	return &EnvSource{prefix: prefix, keys: keys, lookup: os.LookupEnv}
}

// Name returns the source name.
func (s *EnvSource) Name() string {
	return "env"
}

// Values returns the keys whose variables are set.
func (s *EnvSource) Values() map[string]any {
	values := make(map[string]any)
	for _, key := range s.keys {
		if raw, ok := s.lookup(envName(s.prefix, key)); ok {
			values[key] = resolveScalar(raw)
		}
	}
	return values
}

// Origin reports the environment variable if it is set. The lookup is live
// so the answer reflects the environment at the time of the call.
func (s *EnvSource) Origin(key string) (domain.CredentialOrigin, bool) {
	name := envName(s.prefix, key)
	if _, ok := s.lookup(name); !ok {
		return domain.CredentialOrigin{}, false
	}
	return domain.CredentialOrigin{Source: s.Name(), Location: name, FileBacked: false}, true
}
