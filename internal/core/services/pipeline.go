package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
	"github.com/custodia-labs/exchange-agent/internal/logger"
)

// UploadPipeline filters candidate paths from a trigger, admits them through
// the in-flight cache and dispatches them onto a bounded worker pool.
type UploadPipeline struct {
	config    driven.ConfigProvider
	cache     *InFlightCache
	handler   *UploadHandler
	busy      BusyChecker
	extension string
	sem       *semaphore.Weighted
	wg        sync.WaitGroup

	dispatched atomic.Int64
	completed  atomic.Int64
}

// PipelineStats counts dispatched and finished upload tasks.
type PipelineStats struct {
	Dispatched int64
	Completed  int64
}

// NewUploadPipeline creates a pipeline. The pool size and extension are fixed
// for the lifetime of the pipeline; connectors are read from the provider for
// every path so a reload takes effect immediately.
func NewUploadPipeline(
	config driven.ConfigProvider,
	cache *InFlightCache,
	handler *UploadHandler,
	busy BusyChecker,
) *UploadPipeline {
	cfg := config.Current()
	if busy == nil {
		busy = NeverBusy
	}
	poolSize := int64(cfg.Upload.ThreadPoolSize)
	if poolSize < 1 {
		poolSize = 1
	}
	return &UploadPipeline{
		config:    config,
		cache:     cache,
		handler:   handler,
		busy:      busy,
		extension: strings.TrimPrefix(cfg.Upload.Extension, "."),
		sem:       semaphore.NewWeighted(poolSize),
	}
}

// Run consumes the trigger until its channel closes or ctx is cancelled.
// It returns once consumption stops; use Wait to let dispatched tasks finish.
func (p *UploadPipeline) Run(ctx context.Context, trigger driven.Trigger) error {
	paths, err := trigger.Start(ctx)
	if err != nil {
		return fmt.Errorf("start trigger: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			// Drain so the producer can observe cancellation and close.
			go func() {
				for range paths {
				}
			}()
			return nil
		case path, ok := <-paths:
			if !ok {
				return nil
			}
			p.Submit(ctx, path)
		}
	}
}

// Submit runs the filter chain for one path and dispatches it if admitted.
// It blocks while the worker pool is saturated. Returns true if the path was dispatched.
func (p *UploadPipeline) Submit(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	// The busy check precedes the extension filter, but a name the filter
	// rejects anyway is not sampled.
	matches := strings.TrimPrefix(filepath.Ext(path), ".") == p.extension
	if matches && p.busy.Busy(ctx, path) {
		logger.Debug("upload pipeline: %s is still being written, skipped", path)
		return false
	}
	if !matches {
		return false
	}
	if !p.cache.TryAdmit(path) {
		logger.Debug("upload pipeline: %s already in flight, skipped", path)
		return false
	}

	connector, ok := domain.FindBySource(p.config.Current().Connectors, filepath.Dir(path))
	if !ok {
		logger.Warn("upload pipeline: no connector for folder %s, skipped %s", filepath.Dir(path), path)
		p.cache.Release(path)
		return false
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.cache.Release(path)
		return false
	}

	p.dispatched.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer p.completed.Add(1)
		p.handler.Handle(ctx, connector, path)
	}()
	return true
}

// Wait blocks until every dispatched task has finished or the timeout expires.
// Returns false on timeout. A zero timeout only reports whether the pool is idle.
func (p *UploadPipeline) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Stats returns task counters.
func (p *UploadPipeline) Stats() PipelineStats {
	return PipelineStats{
		Dispatched: p.dispatched.Load(),
		Completed:  p.completed.Load(),
	}
}
