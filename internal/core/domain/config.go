package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TriggerKind selects how new outbound files are detected.
type TriggerKind string

// Trigger kinds.
const (
	TriggerWatch TriggerKind = "watch"
	TriggerPoll  TriggerKind = "poll"
)

// BusyStrategy selects how the upload pipeline decides whether a file is still being written.
type BusyStrategy string

// Busy strategies.
const (
	BusyNever           BusyStrategy = "NEVER_BUSY"
	BusyAlways          BusyStrategy = "ALWAYS_BUSY"
	BusyFileSizeChanged BusyStrategy = "FILE_SIZE_CHANGED"
)

// SecretKey is the configuration key holding the OAuth2 client secret.
const SecretKey = "api.client-secret"

// Config is the complete agent configuration.
// A Config is never mutated after loading; reloads produce a new value.
type Config struct {
	Agent      AgentConfig      `yaml:"agent"`
	API        APIConfig        `yaml:"api"`
	Upload     UploadConfig     `yaml:"upload"`
	Cache      CacheConfig      `yaml:"cache"`
	Download   DownloadConfig   `yaml:"download"`
	Credential CredentialConfig `yaml:"credential"`
	Log        LogConfig        `yaml:"log"`
	Connectors []Connector      `yaml:"connectors"`
}

// AgentConfig holds process-level settings.
type AgentConfig struct {
	// ShutdownGrace bounds how long in-flight attempts may run after shutdown.
	// Zero stops without waiting.
	ShutdownGrace time.Duration `yaml:"shutdown-grace"`

	// StateDir holds the task history database. Empty keeps history in memory.
	StateDir string `yaml:"state-dir"`
}

// APIConfig describes how to reach and authenticate against the exchange service.
type APIConfig struct {
	BaseURL           string        `yaml:"base-url"`
	TokenURL          string        `yaml:"token-url"`
	ClientID          string        `yaml:"client-id"`
	ClientSecret      string        `yaml:"client-secret"`
	Scopes            []string      `yaml:"scopes"`
	RequestsPerSecond float64       `yaml:"requests-per-second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

// UploadConfig configures the outbound flow.
type UploadConfig struct {
	Enabled        bool            `yaml:"enabled"`
	Trigger        TriggerKind     `yaml:"trigger"`
	PollDelay      time.Duration   `yaml:"poll-delay"`
	Extension      string          `yaml:"extension"`
	ThreadPoolSize int             `yaml:"thread-pool-size"`
	BufferSize     int             `yaml:"buffer-size"`
	BusyStrategy   BusyStrategy    `yaml:"busy-strategy"`
	BusyInterval   time.Duration   `yaml:"busy-interval"`
	RetryDelays    []time.Duration `yaml:"retry-delays"`
}

// RetryPolicy returns the configured backoff schedule.
func (u UploadConfig) RetryPolicy() RetryPolicy {
	return RetryPolicy{Delays: append([]time.Duration(nil), u.RetryDelays...)}
}

// CacheConfig sizes the in-flight cache.
type CacheConfig struct {
	// MaxBytes is the memory budget of the cache.
	MaxBytes int64 `yaml:"max-bytes"`

	// EntryCost is the estimated cost of one entry in bytes.
	EntryCost int64 `yaml:"entry-cost"`
}

// Capacity returns the number of entries the budget allows, at least one.
func (c CacheConfig) Capacity() int {
	if c.EntryCost <= 0 || c.MaxBytes <= 0 {
		return 1
	}
	n := c.MaxBytes / c.EntryCost
	if n < 1 {
		return 1
	}
	return int(n)
}

// DownloadConfig configures the inbound flow.
type DownloadConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ScheduleDelay  time.Duration `yaml:"schedule-delay"`
	ThreadPoolSize int           `yaml:"thread-pool-size"`
	LocalFolder    string        `yaml:"local-folder"`
	Extension      string        `yaml:"extension"`
}

// CredentialConfig configures secret renewal.
type CredentialConfig struct {
	Renewal RenewalConfig `yaml:"renewal"`
}

// RenewalConfig configures the credential renewal task.
type RenewalConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval between renewals after the startup run. Zero renews only at startup.
	Interval time.Duration `yaml:"interval"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file"`
}

// DefaultConfig returns a configuration with every default filled in and no connectors.
func DefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			ShutdownGrace: 30 * time.Second,
		},
		API: APIConfig{
			RequestsPerSecond: 10,
			Burst:             20,
			Timeout:           60 * time.Second,
		},
		Upload: UploadConfig{
			Enabled:        true,
			Trigger:        TriggerWatch,
			PollDelay:      5 * time.Second,
			Extension:      "xml",
			ThreadPoolSize: 4,
			BufferSize:     64,
			BusyStrategy:   BusyNever,
			BusyInterval:   500 * time.Millisecond,
			RetryDelays:    []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
		},
		Cache: CacheConfig{
			MaxBytes:  1 << 20,
			EntryCost: 256,
		},
		Download: DownloadConfig{
			Enabled:        true,
			ScheduleDelay:  30 * time.Second,
			ThreadPoolSize: 4,
			Extension:      "xml",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Validate checks the whole configuration, including the cross-connector invariants.
func (c *Config) Validate() error {
	if c.Agent.ShutdownGrace < 0 {
		return fmt.Errorf("%w: agent.shutdown-grace must be >= 0, got %s", ErrConfiguration, c.Agent.ShutdownGrace)
	}
	if c.Upload.ThreadPoolSize < 1 {
		return fmt.Errorf("%w: upload.thread-pool-size must be >= 1, got %d", ErrConfiguration, c.Upload.ThreadPoolSize)
	}
	if c.Download.ThreadPoolSize < 1 {
		return fmt.Errorf("%w: download.thread-pool-size must be >= 1, got %d", ErrConfiguration, c.Download.ThreadPoolSize)
	}
	if c.Upload.BufferSize < 0 {
		return fmt.Errorf("%w: upload.buffer-size must be >= 0, got %d", ErrConfiguration, c.Upload.BufferSize)
	}
	switch c.Upload.Trigger {
	case TriggerWatch:
	case TriggerPoll:
		if c.Upload.PollDelay <= 0 {
			return fmt.Errorf("%w: upload.poll-delay must be > 0", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown upload.trigger %q", ErrConfiguration, c.Upload.Trigger)
	}
	switch c.Upload.BusyStrategy {
	case BusyNever, BusyAlways, BusyFileSizeChanged:
	default:
		return fmt.Errorf("%w: unknown upload.busy-strategy %q", ErrConfiguration, c.Upload.BusyStrategy)
	}
	if strings.TrimPrefix(c.Upload.Extension, ".") == "" {
		return fmt.Errorf("%w: upload.extension is required", ErrConfiguration)
	}
	for i, d := range c.Upload.RetryDelays {
		if d < 0 {
			return fmt.Errorf("%w: upload.retry-delays[%d] is negative", ErrConfiguration, i)
		}
	}
	if c.Download.Enabled && len(c.Connectors) > 0 {
		if c.Download.LocalFolder == "" || !filepath.IsAbs(c.Download.LocalFolder) {
			return fmt.Errorf("%w: download.local-folder must be an absolute path", ErrConfiguration)
		}
		if c.Download.ScheduleDelay <= 0 {
			return fmt.Errorf("%w: download.schedule-delay must be > 0", ErrConfiguration)
		}
	}
	return validateConnectors(c.Connectors)
}
