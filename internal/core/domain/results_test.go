package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{Delays: []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}}

	assert.Equal(t, 2, p.Retries())

	d, ok := p.Delay(0)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, d)

	d, ok = p.Delay(1)
	assert.True(t, ok)
	assert.Equal(t, 20*time.Millisecond, d)

	_, ok = p.Delay(2)
	assert.False(t, ok)

	_, ok = p.Delay(-1)
	assert.False(t, ok)
}

func TestRetryPolicy_Empty(t *testing.T) {
	var p RetryPolicy

	assert.Equal(t, 0, p.Retries())
	_, ok := p.Delay(0)
	assert.False(t, ok)
}

func TestUploadResult_Retriable(t *testing.T) {
	assert.False(t, UploadOK().Retriable())
	assert.False(t, UploadRejected(404, nil).Retriable())
	assert.True(t, UploadFailed(503, nil).Retriable())
	assert.True(t, UploadUnreachable(errors.New("refused")).Retriable())
	assert.False(t, UploadResult{}.Retriable())
}

func TestUploadResult_String(t *testing.T) {
	assert.Equal(t, "success", UploadOK().String())
	assert.Equal(t, "client-error (HTTP 404)", UploadRejected(404, nil).String())
	assert.Equal(t, "server-error (HTTP 503)", UploadFailed(503, nil).String())
	assert.Equal(t, "transport-error: refused", UploadUnreachable(errors.New("refused")).String())
	assert.Equal(t, "unknown(0)", UploadResult{}.String())
}

func TestDownloadResult_Constructors(t *testing.T) {
	r := Downloaded("doc-1", "/tmp/doc-1.download", "invoice")
	assert.Equal(t, DownloadSuccess, r.Outcome)
	assert.Equal(t, "doc-1", r.DocumentID)
	assert.Equal(t, "invoice", r.DocumentType)

	assert.Equal(t, DownloadNoDocument, NoDocumentPending().Outcome)

	cause := errors.New("boom")
	r = DownloadFailed(cause)
	assert.Equal(t, DownloadError, r.Outcome)
	assert.ErrorIs(t, r.Err, cause)

	assert.Equal(t, "no-document-pending", DownloadNoDocument.String())
}

func TestFileKindOf(t *testing.T) {
	tests := []struct {
		path string
		want FileKind
		ok   bool
	}{
		{"/etc/agent/application.yml", FileKindYAML, true},
		{"/etc/agent/application.YAML", FileKindYAML, true},
		{"/etc/agent/application.properties", FileKindProperties, true},
		{"/etc/agent/application.toml", "", false},
		{"/etc/agent/application", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			kind, ok := FileKindOf(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}
