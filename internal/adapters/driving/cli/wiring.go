package cli

import (
	"fmt"

	"github.com/custodia-labs/exchange-agent/internal/adapters/driven/config/file"
	"github.com/custodia-labs/exchange-agent/internal/adapters/driven/exchange"
	"github.com/custodia-labs/exchange-agent/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/exchange-agent/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/exchange-agent/internal/adapters/driven/trigger"
	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
	"github.com/custodia-labs/exchange-agent/internal/core/services"
	"github.com/custodia-labs/exchange-agent/internal/logger"
)

// components are the adapters shared by every command.
type components struct {
	config driven.ConfigProvider
	writer driven.ConfigWriter
	client driven.ExchangeClient
	store  driven.SchedulerStore
	close  func() error
}

// newComponents loads the configuration, sets up logging and opens the
// adapters. The caller must call close.
func newComponents(opts *RootOptions) (*components, error) {
	paths, err := resolveConfigPaths(opts.ConfigPaths)
	if err != nil {
		return nil, err
	}

	provider, err := file.NewProvider(paths, file.DefaultEnvPrefix)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	cfg := provider.Current()

	if err := logger.Setup(logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	c := &components{
		config: provider,
		writer: file.NewWriter(),
		client: exchange.NewClient(provider),
		close:  func() error { return nil },
	}

	if cfg.Agent.StateDir == "" {
		c.store = memory.NewSchedulerStore()
		return c, nil
	}
	store, err := sqlite.NewStore(cfg.Agent.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open task history: %w", err)
	}
	c.store = store.SchedulerStore()
	c.close = store.Close
	return c, nil
}

// newAgent wires the upload pipeline and the scheduled tasks.
func newAgent(c *components) (*services.Agent, error) {
	cfg := c.config.Current()

	cache, err := services.NewInFlightCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	handler := services.NewUploadHandler(c.client, cache, services.ConfiguredRetryPolicy(c.config))
	busy := services.NewBusyChecker(cfg.Upload.BusyStrategy, cfg.Upload.BusyInterval)
	pipeline := services.NewUploadPipeline(c.config, cache, handler, busy)

	var trig driven.Trigger
	if cfg.Upload.Enabled {
		if trig, err = trigger.New(cfg); err != nil {
			return nil, err
		}
	}

	scheduler := services.NewScheduler(domain.SchedulerConfigFrom(cfg), c.store)
	services.RegisterTasks(scheduler,
		services.NewDownloadService(c.config, c.client),
		services.NewCredentialRenewal(c.config, c.writer, c.client))

	return services.NewAgent(c.config, pipeline, trig, scheduler), nil
}
