package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driving"
	"github.com/custodia-labs/exchange-agent/internal/logger"
)

// Ensure Agent implements the interface.
var _ driving.Agent = (*Agent)(nil)

// Agent wires the upload pipeline and the scheduled tasks together and owns
// their lifecycle.
type Agent struct {
	config    driven.ConfigProvider
	pipeline  *UploadPipeline
	trigger   driven.Trigger
	scheduler *Scheduler

	running atomic.Bool
}

// NewAgent creates an agent. trigger may be nil when uploads are disabled.
func NewAgent(
	config driven.ConfigProvider,
	pipeline *UploadPipeline,
	trigger driven.Trigger,
	scheduler *Scheduler,
) *Agent {
	return &Agent{
		config:    config,
		pipeline:  pipeline,
		trigger:   trigger,
		scheduler: scheduler,
	}
}

// Run starts everything and blocks until ctx is cancelled. After
// cancellation, dispatched uploads and running tasks get the configured
// grace period to finish their current attempt.
func (a *Agent) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return fmt.Errorf("agent already running")
	}
	defer a.running.Store(false)

	cfg := a.config.Current()
	logger.Info("agent: starting with %d connectors (upload %t via %s, download %t)",
		len(cfg.Connectors), cfg.Upload.Enabled, cfg.Upload.Trigger, cfg.Download.Enabled)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pipelineDone := make(chan error, 1)
	if cfg.Upload.Enabled && a.trigger != nil && a.pipeline != nil {
		go func() {
			pipelineDone <- a.pipeline.Run(runCtx, a.trigger)
		}()
	} else {
		pipelineDone <- nil
	}

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if a.scheduler != nil {
			_ = a.scheduler.Start(runCtx)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-pipelineDone:
		if err != nil {
			logger.Error("agent: upload pipeline failed: %v", err)
			cancel()
			<-schedulerDone
			return err
		}
		<-ctx.Done()
	}

	grace := cfg.Agent.ShutdownGrace
	logger.Info("agent: shutting down, waiting up to %s for in-flight work", grace)
	deadline := time.Now().Add(grace)

	if a.pipeline != nil && !a.pipeline.Wait(grace) {
		logger.Warn("agent: uploads still running after grace period")
	}

	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-schedulerDone:
	case <-timer.C:
		logger.Warn("agent: scheduled tasks still running after grace period")
	}

	logger.Info("agent: stopped")
	return nil
}

// Status reports whether the agent is synchronising. A running agent with
// both directions disabled reports DISABLED.
func (a *Agent) Status() domain.AgentStatus {
	if !a.running.Load() {
		return domain.StatusStopped
	}
	cfg := a.config.Current()
	if cfg.Upload.Enabled || cfg.Download.Enabled {
		return domain.StatusSynchronizing
	}
	return domain.StatusDisabled
}

// RegisterTasks binds the download round and the credential renewal to
// their scheduler task IDs. Either service may be nil.
func RegisterTasks(s *Scheduler, downloads *DownloadService, renewal *CredentialRenewal) {
	if downloads != nil {
		s.Register(domain.TaskIDDocumentDownload, downloads.RunAll)
	}
	if renewal != nil {
		s.Register(domain.TaskIDCredentialRenewal, func(ctx context.Context) (int, error) {
			if err := renewal.Renew(ctx); err != nil {
				logger.Error("credential renewal: %v; current credential stays in force", err)
				return 0, err
			}
			return 1, nil
		})
	}
}
