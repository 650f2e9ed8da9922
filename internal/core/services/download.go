package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
	"github.com/custodia-labs/exchange-agent/internal/logger"
)

// ExtDownload marks a downloaded document that is not yet finalised.
const ExtDownload = "download"

// DownloadService pulls pending documents for every connector and delivers
// them into the connectors' target folders.
type DownloadService struct {
	config driven.ConfigProvider
	client driven.ExchangeClient
	sem    *semaphore.Weighted
}

// NewDownloadService creates a download service. The pool size is fixed at construction.
func NewDownloadService(config driven.ConfigProvider, client driven.ExchangeClient) *DownloadService {
	size := int64(config.Current().Download.ThreadPoolSize)
	if size < 1 {
		size = 1
	}
	return &DownloadService{
		config: config,
		client: client,
		sem:    semaphore.NewWeighted(size),
	}
}

// RunAll runs one round for every connector concurrently, bounded by the pool.
// Returns the number of delivered documents and the joined round errors.
// A failing connector never prevents the others from running.
func (s *DownloadService) RunAll(ctx context.Context) (int, error) {
	cfg := s.config.Current()

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		delivered int
		errs      []error
	)
	for _, connector := range cfg.Connectors {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("download %s: %w", connector, err))
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(c domain.Connector) {
			defer wg.Done()
			defer s.sem.Release(1)

			n, err := s.RunConnector(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			delivered += n
			if err != nil {
				errs = append(errs, fmt.Errorf("download %s: %w", c, err))
			}
		}(connector)
	}
	wg.Wait()

	return delivered, errors.Join(errs...)
}

// RunConnector pulls documents for one connector until none is pending.
// Each document is acknowledged only after it was staged locally, and moved
// into the target folder only after the acknowledgement succeeded.
func (s *DownloadService) RunConnector(ctx context.Context, connector domain.Connector) (int, error) {
	ext := strings.TrimPrefix(s.config.Current().Download.Extension, ".")
	traceID := traceIDFrom(ctx)
	delivered := 0

	// Remote calls are not interrupted by shutdown; the loop stops between documents.
	callCtx := context.WithoutCancel(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if err := checkWritableDir(connector.TargetFolder); err != nil {
			logger.Error("download %s: %v", connector, err)
			return delivered, err
		}

		result := s.client.DownloadNext(callCtx, connector, traceID)
		switch result.Outcome {
		case domain.DownloadSuccess:
			if err := s.client.Acknowledge(callCtx, connector, result.DocumentID, traceID); err != nil {
				logger.Error("download %s: acknowledge %s failed (trace %s), staged copy kept at %s: %v",
					connector, result.DocumentID, traceID, result.File, err)
				return delivered, fmt.Errorf("acknowledge %s: %w", result.DocumentID, err)
			}
			final, err := deliver(result.File, connector.TargetFor(result.DocumentType), ext)
			if err != nil {
				logger.Error("download %s: deliver %s: %v", connector, result.DocumentID, err)
				return delivered, fmt.Errorf("deliver %s: %w", result.DocumentID, err)
			}
			delivered++
			logger.Info("download %s: delivered %s to %s (trace %s)", connector, result.DocumentID, final, traceID)

		case domain.DownloadNoDocument:
			if delivered > 0 {
				logger.Info("download %s: round complete, %d documents (trace %s)", connector, delivered, traceID)
			} else {
				logger.Debug("download %s: no document pending", connector)
			}
			return delivered, nil

		case domain.DownloadError:
			logger.Error("download %s: round aborted (trace %s): %v", connector, traceID, result.Err)
			return delivered, fmt.Errorf("%w: %w", domain.ErrRemote, result.Err)

		default:
			return delivered, fmt.Errorf("unexpected download outcome %s", result.Outcome)
		}
	}
}

// checkWritableDir verifies that dir exists, is a directory and accepts new files.
func checkWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrTargetNotWritable, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrTargetNotWritable, dir)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrTargetNotWritable, dir, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// deliver moves a staged file into dir under its not-yet-final name and then
// renames it to its final extension. A crash in between leaves a .download
// file in dir that is unambiguously unfinished.
func deliver(staged, dir, ext string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	base := filepath.Base(staged)
	pending := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"."+ExtDownload)
	if err := moveFile(staged, pending); err != nil {
		return "", err
	}

	final := withExt(pending, ext)
	if err := os.Rename(pending, final); err != nil {
		return "", fmt.Errorf("rename %s: %w", pending, err)
	}
	return final, nil
}

// moveFile renames src to dst, falling back to copy and delete across devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("close %s: %w", dst, err)
	}
	in.Close()
	return os.Remove(src)
}
