package trigger

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
	"github.com/custodia-labs/exchange-agent/internal/logger"
)

// Ensure Poller implements the interface.
var _ driven.Trigger = (*Poller)(nil)

// Poller lists the watched folders every delay and reports every regular
// file it finds, oldest first. Files still present on the next pass are
// reported again; the upload pipeline deduplicates them.
type Poller struct {
	dirs    []string
	delay   time.Duration
	buffer  int
	started atomic.Bool
}

// NewPoller creates a poller for dirs.
func NewPoller(dirs []string, delay time.Duration, buffer int) *Poller {
	return &Poller{dirs: dirs, delay: delay, buffer: buffer}
}

// Start begins polling. The first pass runs immediately.
func (p *Poller) Start(ctx context.Context) (<-chan string, error) {
	if !p.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	out := make(chan string, p.buffer)
	go p.poll(ctx, out)
	return out, nil
}

func (p *Poller) poll(ctx context.Context, out chan<- string) {
	defer close(out)

	for {
		for _, path := range p.scan() {
			select {
			case out <- path:
			case <-ctx.Done():
				return
			}
		}

		timer := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

type candidate struct {
	path    string
	modTime time.Time
}

// scan lists every folder and returns every entry that is not a directory,
// ordered by modification time. Symlinks are reported and sorted by their
// target; the pipeline decides whether they are uploadable.
func (p *Poller) scan() []string {
	var found []candidate
	for _, dir := range p.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Warn("poller: cannot list %s: %v", dir, err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path, err := filepath.Abs(filepath.Join(dir, entry.Name()))
			if err != nil {
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				if info, err = entry.Info(); err != nil {
					continue // removed since listing
				}
			}
			found = append(found, candidate{path: path, modTime: info.ModTime()})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].modTime.Equal(found[j].modTime) {
			return found[i].path < found[j].path
		}
		return found[i].modTime.Before(found[j].modTime)
	})

	paths := make([]string, len(found))
	for i, c := range found {
		paths[i] = c.path
	}
	return paths
}
