package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driving"
	"github.com/custodia-labs/exchange-agent/internal/logger"
)

// Ensure Scheduler implements the interfaces.
var (
	_ driving.Scheduler   = (*Scheduler)(nil)
	_ driving.TaskHistory = (*Scheduler)(nil)
)

// historyRetention is the number of results kept per task.
const historyRetention = 100

// TaskFunc runs one execution of a scheduled task and returns the number of items processed.
type TaskFunc func(ctx context.Context) (int, error)

// Scheduler runs registered tasks as fixed-delay loops: each run starts
// Interval after the previous one finished. Task state and run history are
// persisted in the store.
type Scheduler struct {
	config domain.SchedulerConfig
	store  driven.SchedulerStore
	tasks  map[string]TaskFunc

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(config domain.SchedulerConfig, store driven.SchedulerStore) *Scheduler {
	return &Scheduler{
		config: config,
		store:  store,
		tasks:  make(map[string]TaskFunc),
	}
}

// Register adds a task implementation. Tasks must be registered before Start.
func (s *Scheduler) Register(taskID string, fn TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[taskID] = fn
}

// Start begins the task loops. This method blocks until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.mu.Unlock()

	if !s.config.Enabled {
		logger.Info("scheduler: disabled")
	} else {
		for id, fn := range s.tasks {
			taskCfg := s.config.GetTaskConfig(id)
			if !taskCfg.Enabled {
				logger.Debug("scheduler: task %s disabled", id)
				continue
			}
			task, err := s.ensureTask(ctx, id, taskCfg)
			if err != nil {
				logger.Warn("scheduler: failed to initialise task %s: %v", id, err)
				task = &domain.ScheduledTask{ID: id, Name: domain.TaskName(id), Interval: taskCfg.Interval, Enabled: true}
			}
			s.wg.Add(1)
			go s.loop(ctx, stopCh, task, fn)
		}
	}

	select {
	case <-ctx.Done():
	case <-stopCh:
	}
	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// Stop gracefully shuts down the scheduler and waits for running tasks to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running || s.stopCh == nil {
		s.mu.Unlock()
		return nil
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id string, cfg domain.TaskConfig) (*domain.ScheduledTask, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     domain.TaskName(id),
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
		}
	} else {
		task.Interval = cfg.Interval
		task.Enabled = cfg.Enabled
	}
	// Every enabled task runs once at startup.
	task.NextRun = time.Now()

	return task, s.store.SaveTask(ctx, task)
}

// loop runs a task now and then again Interval after each completion.
// A zero interval runs the task once.
func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}, task *domain.ScheduledTask, fn TaskFunc) {
	defer s.wg.Done()

	for {
		s.runTask(ctx, task, fn)
		if task.Interval <= 0 {
			return
		}

		timer := time.NewTimer(task.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runTask executes a single task run and records its outcome.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask, fn TaskFunc) {
	result := &domain.TaskResult{
		TaskID:    task.ID,
		StartedAt: time.Now(),
		TraceID:   uuid.NewString(),
	}

	var err error
	result.ItemsProcessed, err = fn(withTraceID(ctx, result.TraceID))

	result.EndedAt = time.Now()
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		task.LastError = err.Error()
		logger.Error("scheduler: task %s failed (trace %s): %v", task.ID, result.TraceID, err)
	} else {
		result.Success = true
		task.LastError = ""
		task.LastSuccess = result.EndedAt
	}

	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(task.Interval)

	// Bookkeeping outlives cancellation so the last run is still recorded at shutdown.
	storeCtx := context.WithoutCancel(ctx)
	if saveErr := s.store.SaveTask(storeCtx, task); saveErr != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
	}
	if recordErr := s.store.RecordResult(storeCtx, result); recordErr != nil {
		logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
	}
	if pruneErr := s.store.PruneHistory(storeCtx, historyRetention); pruneErr != nil {
		logger.Warn("scheduler: failed to prune history: %v", pruneErr)
	}
}

// Tasks returns the state of every known task.
func (s *Scheduler) Tasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	return s.store.ListTasks(ctx)
}

// History returns the most recent runs of a task, newest first.
func (s *Scheduler) History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	return s.store.GetTaskHistory(ctx, taskID, limit)
}
