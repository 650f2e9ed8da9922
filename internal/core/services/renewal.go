package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driving"
	"github.com/custodia-labs/exchange-agent/internal/logger"
)

// Ensure CredentialRenewal implements the interface.
var _ driving.CredentialRenewer = (*CredentialRenewal)(nil)

// RenewalStage names the step of a renewal that failed.
type RenewalStage string

// Renewal stages, in execution order.
const (
	StageResolveOrigin RenewalStage = "resolve-origin"
	StageCheckWritable RenewalStage = "check-writable"
	StageFileKind      RenewalStage = "file-kind"
	StageRenewSecret   RenewalStage = "renew-secret"
	StageRewrite       RenewalStage = "rewrite"
	StageReload        RenewalStage = "reload"
)

// RenewalError reports the stage at which a renewal failed.
// The credential in force before the renewal stays in force, except after a
// failed reload, where the file already holds the new secret.
type RenewalError struct {
	Stage RenewalStage
	Err   error
}

func (e *RenewalError) Error() string {
	return fmt.Sprintf("credential renewal failed at %s: %v", e.Stage, e.Err)
}

func (e *RenewalError) Unwrap() error {
	return e.Err
}

// CredentialRenewal replaces the client secret in the configuration file that defines it.
type CredentialRenewal struct {
	config driven.ConfigProvider
	writer driven.ConfigWriter
	client driven.ExchangeClient
}

// NewCredentialRenewal creates a credential renewal service.
func NewCredentialRenewal(
	config driven.ConfigProvider,
	writer driven.ConfigWriter,
	client driven.ExchangeClient,
) *CredentialRenewal {
	return &CredentialRenewal{
		config: config,
		writer: writer,
		client: client,
	}
}

// Renew runs one renewal cycle. Every failure is returned as a *RenewalError.
// No network call is made unless the file that defines the secret can be rewritten.
func (r *CredentialRenewal) Renew(ctx context.Context) error {
	cfg := r.config.Current()
	if !cfg.Credential.Renewal.Enabled {
		return domain.ErrRenewalDisabled
	}

	origin, err := r.resolveOrigin()
	if err != nil {
		return &RenewalError{Stage: StageResolveOrigin, Err: err}
	}

	if !origin.FileBacked {
		return &RenewalError{Stage: StageCheckWritable, Err: fmt.Errorf("%w: %w: %s is not a file",
			domain.ErrConfiguration, domain.ErrOriginNotWritable, origin)}
	}
	if err := r.writer.Writable(origin.Location); err != nil {
		return &RenewalError{Stage: StageCheckWritable, Err: fmt.Errorf("%w: %w: %w",
			domain.ErrConfiguration, domain.ErrOriginNotWritable, err)}
	}

	kind, ok := domain.FileKindOf(origin.Location)
	if !ok {
		return &RenewalError{Stage: StageFileKind, Err: fmt.Errorf("%w: %w: %s",
			domain.ErrConfiguration, domain.ErrUnsupportedFileKind, origin)}
	}

	traceID := traceIDFrom(ctx)
	secret, err := r.renewSecret(ctx, cfg.Upload.RetryPolicy(), traceID)
	if err != nil {
		return &RenewalError{Stage: StageRenewSecret, Err: err}
	}

	if err := r.writer.Rewrite(origin.Location, kind, domain.SecretKey, secret); err != nil {
		return &RenewalError{Stage: StageRewrite, Err: err}
	}
	logger.Info("credential renewal: new secret written to %s (trace %s)", origin, traceID)

	if err := r.config.Reload(); err != nil {
		return &RenewalError{Stage: StageReload, Err: err}
	}
	logger.Info("credential renewal: configuration reloaded")
	return nil
}

// resolveOrigin asks every source where the secret is defined and requires
// exactly one distinct answer.
func (r *CredentialRenewal) resolveOrigin() (domain.CredentialOrigin, error) {
	origins := make(map[string]domain.CredentialOrigin)
	for _, source := range r.config.Sources() {
		if origin, ok := source.Origin(domain.SecretKey); ok {
			origins[origin.Location] = origin
		}
	}

	if len(origins) != 1 {
		locations := make([]string, 0, len(origins))
		for loc := range origins {
			locations = append(locations, loc)
		}
		sort.Strings(locations)
		return domain.CredentialOrigin{}, fmt.Errorf("%w: %w: %d origins for %s [%s]",
			domain.ErrConfiguration, domain.ErrAmbiguousOrigin, len(origins), domain.SecretKey,
			strings.Join(locations, ", "))
	}
	var origin domain.CredentialOrigin
	for _, o := range origins {
		origin = o
	}
	return origin, nil
}

// renewSecret calls the service, retrying transient failures with the policy.
func (r *CredentialRenewal) renewSecret(ctx context.Context, policy domain.RetryPolicy, traceID string) (string, error) {
	for attempt := 0; ; attempt++ {
		secret, err := r.client.RenewSecret(ctx, traceID)
		if err == nil {
			if secret == "" {
				return "", fmt.Errorf("%w: empty secret returned", domain.ErrRemote)
			}
			return secret, nil
		}
		if !isRetriable(err) {
			return "", err
		}
		delay, ok := policy.Delay(attempt)
		if !ok {
			return "", fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}
		logger.Warn("credential renewal: attempt %d failed (trace %s): %v; retrying in %s", attempt+1, traceID, err, delay)
		if err := sleepCtx(ctx, delay); err != nil {
			return "", err
		}
	}
}

// isRetriable reports whether err declares itself transient.
func isRetriable(err error) bool {
	var r interface{ Retriable() bool }
	return errors.As(err, &r) && r.Retriable()
}
