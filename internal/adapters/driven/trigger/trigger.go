// Package trigger provides the sources of candidate files for the upload pipeline.
package trigger

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
)

// ErrAlreadyStarted is returned when Start is called twice on a trigger.
var ErrAlreadyStarted = errors.New("trigger already started")

// New returns the trigger configured for uploads, watching every connector's source folder.
func New(cfg *domain.Config) (driven.Trigger, error) {
	dirs := make([]string, 0, len(cfg.Connectors))
	for _, c := range cfg.Connectors {
		dirs = append(dirs, c.SourceFolder)
	}

	switch cfg.Upload.Trigger {
	case domain.TriggerWatch:
		return NewWatcher(dirs, cfg.Upload.BufferSize), nil
	case domain.TriggerPoll:
		return NewPoller(dirs, cfg.Upload.PollDelay, cfg.Upload.BufferSize), nil
	default:
		return nil, fmt.Errorf("%w: unknown upload trigger %q", domain.ErrConfiguration, cfg.Upload.Trigger)
	}
}
