package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
	"github.com/custodia-labs/exchange-agent/internal/logger"
)

// File extensions of the outbound protocol.
const (
	ExtUpload   = "upload"
	ExtError    = "error"
	ExtResponse = "response"
)

// UploadState is the terminal state of one handled file.
type UploadState string

// Upload states.
const (
	// UploadSkipped means the file could not be renamed and was left untouched.
	UploadSkipped UploadState = "skipped"

	// UploadDelivered means the service accepted the file and it was deleted.
	UploadDelivered UploadState = "delivered"

	// UploadRejectedState means the service rejected the file; it was renamed to .error.
	UploadRejectedState UploadState = "rejected"

	// UploadPending means retries ran out (or shutdown interrupted them);
	// the .upload file stays on disk.
	UploadPending UploadState = "pending"
)

// UploadReport summarises the handling of one file.
type UploadReport struct {
	State    UploadState
	Attempts int
	Last     domain.UploadResult
}

// UploadHandler drives one file through rename, upload, retry and the
// terminal filesystem transition.
type UploadHandler struct {
	client driven.ExchangeClient
	cache  *InFlightCache
	policy RetryPolicyFunc
}

// RetryPolicyFunc returns the retry policy for the next file.
type RetryPolicyFunc func() domain.RetryPolicy

// FixedRetryPolicy returns p for every file.
func FixedRetryPolicy(p domain.RetryPolicy) RetryPolicyFunc {
	return func() domain.RetryPolicy { return p }
}

// ConfiguredRetryPolicy reads upload.retry-delays from the current
// configuration, so a reload applies to files picked up afterwards.
func ConfiguredRetryPolicy(config driven.ConfigProvider) RetryPolicyFunc {
	return func() domain.RetryPolicy { return config.Current().Upload.RetryPolicy() }
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(client driven.ExchangeClient, cache *InFlightCache, policy RetryPolicyFunc) *UploadHandler {
	return &UploadHandler{
		client: client,
		cache:  cache,
		policy: policy,
	}
}

// withExt replaces the extension of path.
func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + ext
}

// Handle processes an admitted file. The cache entry for path is always
// released before Handle returns.
//
// Cancelling ctx stops the retry sequence between attempts; an attempt
// already in progress is allowed to finish.
func (h *UploadHandler) Handle(ctx context.Context, connector domain.Connector, path string) UploadReport {
	defer h.cache.Release(path)

	traceID := uuid.NewString()
	uploading := withExt(path, ExtUpload)

	// A file on disk is only ever deleted after it was renamed here,
	// so a failed rename must never lead to a send.
	if err := os.Rename(path, uploading); err != nil {
		logger.Warn("upload %s: rename to .%s failed, will retry on next trigger: %v", path, ExtUpload, err)
		return UploadReport{State: UploadSkipped}
	}

	policy := h.policy()
	attemptCtx := context.WithoutCancel(ctx)
	report := UploadReport{}
	for {
		report.Attempts++
		result := h.client.Upload(attemptCtx, connector, uploading, traceID)
		report.Last = result

		switch result.Outcome {
		case domain.UploadSuccess:
			if err := os.Remove(uploading); err != nil {
				logger.Error("upload %s: delivered (trace %s) but could not delete %s: %v", path, traceID, uploading, err)
			} else {
				logger.Info("upload %s: delivered for %s (trace %s, attempts %d)", path, connector, traceID, report.Attempts)
			}
			report.State = UploadDelivered
			return report

		case domain.UploadClientError:
			h.reject(path, uploading, result, traceID)
			report.State = UploadRejectedState
			return report

		case domain.UploadServerError, domain.UploadTransportError:
			delay, ok := policy.Delay(report.Attempts - 1)
			if !ok {
				logger.Error("upload %s: giving up after %d attempts (trace %s): %s; %s left for operator",
					path, report.Attempts, traceID, result, filepath.Base(uploading))
				report.State = UploadPending
				return report
			}
			logger.Warn("upload %s: attempt %d failed (trace %s): %s; retrying in %s",
				path, report.Attempts, traceID, result, delay)
			if err := sleepCtx(ctx, delay); err != nil {
				logger.Warn("upload %s: retries interrupted by shutdown; %s left on disk", path, filepath.Base(uploading))
				report.State = UploadPending
				return report
			}

		default:
			logger.Error("upload %s: unexpected result %s (trace %s); %s left on disk",
				path, result, traceID, filepath.Base(uploading))
			report.State = UploadPending
			return report
		}
	}
}

// reject moves a client-rejected file to .error and records the response body.
func (h *UploadHandler) reject(path, uploading string, result domain.UploadResult, traceID string) {
	errorFile := withExt(path, ExtError)
	if err := os.Rename(uploading, errorFile); err != nil {
		logger.Error("upload %s: rejected with HTTP %d but rename to .%s failed: %v", path, result.StatusCode, ExtError, err)
	}
	if err := appendResponse(withExt(path, ExtResponse), result.Body); err != nil {
		logger.Error("upload %s: write response body: %v", path, err)
	}
	logger.Warn("upload %s: rejected with HTTP %d (trace %s), see %s",
		path, result.StatusCode, traceID, filepath.Base(withExt(path, ExtResponse)))
}

func appendResponse(path string, body []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
