package services

import (
	"context"
	"os"
	"time"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
)

// BusyChecker reports whether a file is still being written by its producer.
type BusyChecker interface {
	Busy(ctx context.Context, path string) bool
}

// BusyCheckerFunc adapts a function to BusyChecker.
type BusyCheckerFunc func(ctx context.Context, path string) bool

// Busy implements BusyChecker.
func (f BusyCheckerFunc) Busy(ctx context.Context, path string) bool {
	return f(ctx, path)
}

// NeverBusy treats every file as complete.
var NeverBusy = BusyCheckerFunc(func(context.Context, string) bool { return false })

// AlwaysBusy treats every file as still being written.
var AlwaysBusy = BusyCheckerFunc(func(context.Context, string) bool { return true })

// sizeChangeChecker samples the file size twice and reports busy if it changed.
type sizeChangeChecker struct {
	interval time.Duration
}

func (c sizeChangeChecker) Busy(ctx context.Context, path string) bool {
	before, err := os.Stat(path)
	if err != nil {
		return true
	}

	timer := time.NewTimer(c.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
	}

	after, err := os.Stat(path)
	if err != nil {
		return true
	}
	return before.Size() != after.Size() || !before.ModTime().Equal(after.ModTime())
}

// NewBusyChecker returns the checker for a configured strategy.
// Unknown or empty strategies default to never busy.
func NewBusyChecker(strategy domain.BusyStrategy, interval time.Duration) BusyChecker {
	switch strategy {
	case domain.BusyAlways:
		return AlwaysBusy
	case domain.BusyFileSizeChanged:
		return sizeChangeChecker{interval: interval}
	default:
		return NeverBusy
	}
}
