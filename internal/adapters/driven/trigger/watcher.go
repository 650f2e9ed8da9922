package trigger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
	"github.com/custodia-labs/exchange-agent/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.Trigger = (*Watcher)(nil)

// Watcher reports files created in the watched folders, using fsnotify.
// Only creations are reported; files present before Start are not.
type Watcher struct {
	dirs    []string
	buffer  int
	started atomic.Bool
}

// NewWatcher creates a watcher for dirs with a channel of the given capacity.
func NewWatcher(dirs []string, buffer int) *Watcher {
	return &Watcher{dirs: dirs, buffer: buffer}
}

// Start registers every folder and begins forwarding creations.
// Fails if any folder cannot be watched.
func (w *Watcher) Start(ctx context.Context) (<-chan string, error) {
	if !w.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		logger.Debug("watcher: watching %s", dir)
	}

	out := make(chan string, w.buffer)
	go w.watch(ctx, fw, out)
	return out, nil
}

func (w *Watcher) watch(ctx context.Context, fw *fsnotify.Watcher, out chan<- string) {
	defer close(out)
	defer fw.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			select {
			case out <- path:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			// Overflow drops events; a later creation or a restart picks the files up.
			logger.Warn("watcher: %v", err)
		}
	}
}
