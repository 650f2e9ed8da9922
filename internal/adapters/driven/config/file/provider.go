package file

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
	"github.com/custodia-labs/exchange-agent/internal/logger"
)

// Ensure Provider implements the interface.
var _ driven.ConfigProvider = (*Provider)(nil)

// DefaultEnvPrefix prefixes environment variables read by the provider.
const DefaultEnvPrefix = "EXCHANGE"

// Provider merges configuration files and the environment into a validated
// domain.Config. Later files override earlier ones; the environment overrides all files.
type Provider struct {
	paths     []string
	envPrefix string

	mu      sync.Mutex // serialises Reload
	current atomic.Pointer[domain.Config]
	sources atomic.Pointer[[]driven.ConfigSource]
}

// NewProvider loads the configuration. An empty envPrefix disables the environment source.
func NewProvider(paths []string, envPrefix string) (*Provider, error) {
	p := &Provider{
		paths:     append([]string(nil), paths...),
		envPrefix: envPrefix,
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Current returns the configuration in force.
func (p *Provider) Current() *domain.Config {
	return p.current.Load()
}

// Sources returns the sources of the configuration in force, lowest precedence first.
func (p *Provider) Sources() []driven.ConfigSource {
	sources := p.sources.Load()
	if sources == nil {
		return nil
	}
	return *sources
}

// Reload re-reads every source. On failure the previous configuration stays in force.
func (p *Provider) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg, sources, err := p.load()
	if err != nil {
		if p.current.Load() != nil {
			logger.Error("config: reload failed, keeping previous configuration: %v", err)
		}
		return err
	}

	p.current.Store(cfg)
	p.sources.Store(&sources)
	logger.Debug("config: loaded %d sources, %d connectors", len(sources), len(cfg.Connectors))
	return nil
}

func (p *Provider) load() (*domain.Config, []driven.ConfigSource, error) {
	var sources []driven.ConfigSource
	merged := make(map[string]any)

	for _, path := range p.paths {
		source, err := LoadFileSource(path)
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, source)
		mergeFile(merged, source.Values())
	}

	if p.envPrefix != "" {
		keys, err := knownKeys(merged)
		if err != nil {
			return nil, nil, err
		}
		env := NewEnvSource(p.envPrefix, keys)
		sources = append(sources, env)
		for k, v := range env.Values() {
			merged[k] = v
		}
	}

	cfg, err := decode(merged)
	if err != nil {
		return nil, nil, err
	}
	return cfg, sources, nil
}

// mergeFile overlays values onto merged. A list defined by values replaces
// the whole list of an earlier source instead of overlaying it by index.
func mergeFile(merged, values map[string]any) {
	for key := range values {
		open := strings.Index(key, "[")
		if open < 0 {
			continue
		}
		root := key[:open]
		for k := range merged {
			if k == root || strings.HasPrefix(k, root+"[") {
				delete(merged, k)
			}
		}
	}
	for k, v := range values {
		if list, ok := v.([]any); ok && len(list) == 0 {
			for existing := range merged {
				if strings.HasPrefix(existing, k+"[") {
					delete(merged, existing)
				}
			}
		}
		merged[k] = v
	}
}

// decode turns flattened values into a validated configuration on top of the defaults.
func decode(flat map[string]any) (*domain.Config, error) {
	tree, err := unflatten(flat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	cfg := domain.DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// knownKeys lists every key that may be overridden from the environment:
// the keys of the defaults plus every key defined by a file.
func knownKeys(fileValues map[string]any) ([]string, error) {
	data, err := yaml.Marshal(domain.DefaultConfig())
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	for k := range flattenMap(tree, "") {
		set[k] = true
	}
	for k := range fileValues {
		set[k] = true
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
