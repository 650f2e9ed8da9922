package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
)

// transientError is retried by the renewal service.
type transientError struct{ code int }

func (e transientError) Error() string   { return "transient" }
func (e transientError) Retriable() bool { return e.code >= 500 }

func renewalConfig() domain.Config {
	cfg := domain.DefaultConfig()
	cfg.Credential.Renewal.Enabled = true
	cfg.Upload.RetryDelays = []time.Duration{time.Millisecond, time.Millisecond}
	return cfg
}

func newTestRenewal(cfg domain.Config, client *mockExchangeClient, writer *mockConfigWriter, sources ...driven.ConfigSource) (*CredentialRenewal, *mockConfigProvider) {
	provider := newMockConfigProvider(cfg, sources...)
	return NewCredentialRenewal(provider, writer, client), provider
}

func requireStage(t *testing.T, err error, stage RenewalStage) {
	t.Helper()
	var renewalErr *RenewalError
	require.ErrorAs(t, err, &renewalErr)
	assert.Equal(t, stage, renewalErr.Stage)
}

func TestCredentialRenewal_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yml")
	client := newMockExchangeClient()
	writer := &mockConfigWriter{}
	renewal, provider := newTestRenewal(renewalConfig(), client, writer, fileSource(path))

	require.NoError(t, renewal.Renew(context.Background()))

	assert.Equal(t, []string{"renew"}, client.Calls())
	assert.Equal(t, []string{path + "|YAML|api.client-secret=renewed-secret"}, writer.rewrites)
	assert.Equal(t, int32(1), provider.reloads.Load())
}

func TestCredentialRenewal_Disabled(t *testing.T) {
	client := newMockExchangeClient()
	renewal, _ := newTestRenewal(domain.DefaultConfig(), client, &mockConfigWriter{})

	assert.ErrorIs(t, renewal.Renew(context.Background()), domain.ErrRenewalDisabled)
	assert.Empty(t, client.Calls())
}

func TestCredentialRenewal_OriginResolution(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "application.yml")
	props := filepath.Join(dir, "application.properties")

	tests := []struct {
		name    string
		sources []driven.ConfigSource
	}{
		{name: "no origin", sources: nil},
		{name: "two origins", sources: []driven.ConfigSource{fileSource(yml), fileSource(props)}},
		{name: "unrelated source only", sources: []driven.ConfigSource{&mockConfigSource{name: "empty"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMockExchangeClient()
			renewal, _ := newTestRenewal(renewalConfig(), client, &mockConfigWriter{}, tt.sources...)

			err := renewal.Renew(context.Background())
			requireStage(t, err, StageResolveOrigin)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.ErrorIs(t, err, domain.ErrAmbiguousOrigin)
			assert.Empty(t, client.Calls(), "no network call before the origin is settled")
		})
	}
}

func TestCredentialRenewal_SameFileTwiceIsOneOrigin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yml")
	client := newMockExchangeClient()
	writer := &mockConfigWriter{}
	renewal, _ := newTestRenewal(renewalConfig(), client, writer, fileSource(path), fileSource(path))

	require.NoError(t, renewal.Renew(context.Background()))
	assert.Len(t, writer.rewrites, 1)
}

func TestCredentialRenewal_EnvironmentOriginIsNotWritable(t *testing.T) {
	env := &mockConfigSource{
		name: "env",
		origins: map[string]domain.CredentialOrigin{
			domain.SecretKey: {Source: "env", Location: "EXCHANGE_API_CLIENT_SECRET"},
		},
	}
	client := newMockExchangeClient()
	renewal, _ := newTestRenewal(renewalConfig(), client, &mockConfigWriter{}, env)

	err := renewal.Renew(context.Background())
	requireStage(t, err, StageCheckWritable)
	assert.ErrorIs(t, err, domain.ErrOriginNotWritable)
	assert.Empty(t, client.Calls())
}

func TestCredentialRenewal_FileNotWritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yml")
	client := newMockExchangeClient()
	writer := &mockConfigWriter{writableErr: errors.New("permission denied")}
	renewal, _ := newTestRenewal(renewalConfig(), client, writer, fileSource(path))

	err := renewal.Renew(context.Background())
	requireStage(t, err, StageCheckWritable)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Empty(t, client.Calls())
}

func TestCredentialRenewal_UnsupportedFileKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.toml")
	client := newMockExchangeClient()
	renewal, _ := newTestRenewal(renewalConfig(), client, &mockConfigWriter{}, fileSource(path))

	err := renewal.Renew(context.Background())
	requireStage(t, err, StageFileKind)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileKind)
	assert.Empty(t, client.Calls())
}

func TestCredentialRenewal_RetriesTransientFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.properties")
	client := newMockExchangeClient()
	client.renewFn = func(attempt int) (string, error) {
		if attempt < 3 {
			return "", transientError{code: 503}
		}
		return "third-time", nil
	}
	writer := &mockConfigWriter{}
	renewal, _ := newTestRenewal(renewalConfig(), client, writer, fileSource(path))

	require.NoError(t, renewal.Renew(context.Background()))
	assert.Len(t, client.Calls(), 3)
	assert.Equal(t, []string{path + "|PROPERTIES|api.client-secret=third-time"}, writer.rewrites)
}

func TestCredentialRenewal_GivesUpAfterPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yml")
	client := newMockExchangeClient()
	client.renewFn = func(int) (string, error) { return "", transientError{code: 502} }
	writer := &mockConfigWriter{}
	renewal, provider := newTestRenewal(renewalConfig(), client, writer, fileSource(path))

	err := renewal.Renew(context.Background())
	requireStage(t, err, StageRenewSecret)
	assert.Len(t, client.Calls(), 3)
	assert.Empty(t, writer.rewrites, "the old credential stays in force")
	assert.Equal(t, int32(0), provider.reloads.Load())
}

func TestCredentialRenewal_PermanentFailureIsNotRetried(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yml")
	client := newMockExchangeClient()
	client.renewFn = func(int) (string, error) { return "", transientError{code: 401} }
	renewal, _ := newTestRenewal(renewalConfig(), client, &mockConfigWriter{}, fileSource(path))

	err := renewal.Renew(context.Background())
	requireStage(t, err, StageRenewSecret)
	assert.Len(t, client.Calls(), 1)
}

func TestCredentialRenewal_EmptySecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yml")
	client := newMockExchangeClient()
	client.renewFn = func(int) (string, error) { return "", nil }
	writer := &mockConfigWriter{}
	renewal, _ := newTestRenewal(renewalConfig(), client, writer, fileSource(path))

	err := renewal.Renew(context.Background())
	requireStage(t, err, StageRenewSecret)
	assert.ErrorIs(t, err, domain.ErrRemote)
	assert.Empty(t, writer.rewrites)
}

func TestCredentialRenewal_RewriteAndReloadFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yml")

	writer := &mockConfigWriter{rewriteErr: errors.New("disk full")}
	renewal, provider := newTestRenewal(renewalConfig(), newMockExchangeClient(), writer, fileSource(path))
	requireStage(t, renewal.Renew(context.Background()), StageRewrite)
	assert.Equal(t, int32(0), provider.reloads.Load())

	renewal, provider = newTestRenewal(renewalConfig(), newMockExchangeClient(), &mockConfigWriter{}, fileSource(path))
	provider.reloadErr = errors.New("invalid")
	requireStage(t, renewal.Renew(context.Background()), StageReload)
}

func TestRenewalError(t *testing.T) {
	err := &RenewalError{Stage: StageRewrite, Err: domain.ErrNotFound}
	assert.Equal(t, "credential renewal failed at rewrite: not found", err.Error())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
