// Package exchange provides the HTTP client for the remote document-exchange service.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
	"github.com/custodia-labs/exchange-agent/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.ExchangeClient = (*Client)(nil)

// Headers and defaults of the exchange protocol.
const (
	HeaderTraceID      = "X-Trace-Id"
	HeaderDocumentID   = "X-Document-Id"
	HeaderDocumentType = "X-Document-Type"

	DefaultContentType = "application/xml"

	// StagedExtension marks a downloaded document that is not yet delivered.
	StagedExtension = ".download"

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 1 << 20
)

// Client talks to the exchange service over HTTP.
// Settings are read from the configuration on every call, so a reloaded
// secret is picked up without rebuilding the client.
type Client struct {
	config  driven.ConfigProvider
	http    *http.Client
	limiter *rate.Limiter

	mu     sync.Mutex
	tokens oauth2.TokenSource
	tokenK tokenKey
}

// tokenKey identifies the credentials a token source was built from.
type tokenKey struct {
	url    string
	id     string
	secret string
	scopes string
}

// NewClient creates a client. Rate limit and timeout are taken from the
// configuration at construction time.
func NewClient(config driven.ConfigProvider) *Client {
	api := config.Current().API

	limit := rate.Limit(api.RequestsPerSecond)
	if api.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := api.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		config:  config,
		http:    &http.Client{Timeout: api.Timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// DownloadNext pulls the next pending document and stages it as
// <local-folder>/<document-id>.download.
func (c *Client) DownloadNext(ctx context.Context, connector domain.Connector, traceID string) domain.DownloadResult {
	cfg := c.config.Current()

	resp, err := c.do(ctx, http.MethodGet, connectorURL(cfg, connector, "documents", "next"), nil, "", traceID)
	if err != nil {
		return domain.DownloadFailed(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return domain.NoDocumentPending()
	case resp.StatusCode != http.StatusOK:
		return domain.DownloadFailed(statusError("download-next", resp))
	}

	docID := resp.Header.Get(HeaderDocumentID)
	if docID == "" || docID != filepath.Base(docID) || strings.HasPrefix(docID, ".") {
		return domain.DownloadFailed(fmt.Errorf("%w: download-next: invalid document id %q", domain.ErrRemote, docID))
	}

	staged, err := stage(cfg.Download.LocalFolder, docID, resp.Body)
	if err != nil {
		return domain.DownloadFailed(&TransportError{Op: "download-next", Err: err})
	}
	return domain.Downloaded(docID, staged, resp.Header.Get(HeaderDocumentType))
}

// stage writes body to dir/<id>.download. A partial file is removed.
func stage(dir, docID string, body io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create local folder: %w", err)
	}
	path := filepath.Join(dir, docID+StagedExtension)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close staged file: %w", err)
	}
	return path, nil
}

// Acknowledge confirms receipt of a document.
func (c *Client) Acknowledge(ctx context.Context, connector domain.Connector, documentID, traceID string) error {
	cfg := c.config.Current()

	resp, err := c.do(ctx, http.MethodPost, connectorURL(cfg, connector, "documents", documentID, "ack"), nil, "", traceID)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusError("acknowledge", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Upload sends file with the connector's content type.
func (c *Client) Upload(ctx context.Context, connector domain.Connector, file, traceID string) domain.UploadResult {
	cfg := c.config.Current()

	f, err := os.Open(file)
	if err != nil {
		return domain.UploadUnreachable(fmt.Errorf("open upload file: %w", err))
	}
	defer f.Close()

	contentType := connector.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	resp, err := c.do(ctx, http.MethodPost, connectorURL(cfg, connector, "documents"), f, contentType, traceID)
	if err != nil {
		// Includes token failures: the document itself was never judged.
		return domain.UploadUnreachable(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	switch resp.StatusCode / 100 {
	case 2:
		return domain.UploadOK()
	case 4:
		return domain.UploadRejected(resp.StatusCode, body)
	default:
		return domain.UploadFailed(resp.StatusCode, body)
	}
}

type secretResponse struct {
	Secret string `json:"secret"`
}

// RenewSecret asks the service for a new client secret.
func (c *Client) RenewSecret(ctx context.Context, traceID string) (string, error) {
	cfg := c.config.Current()

	resp, err := c.do(ctx, http.MethodPost, strings.TrimRight(cfg.API.BaseURL, "/")+"/credentials/secret", nil, "", traceID)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("renew-secret", resp)
	}

	var out secretResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: renew-secret: decode response: %w", domain.ErrRemote, err)
	}
	return out.Secret, nil
}

// do throttles, authenticates and sends one request.
func (c *Client) do(ctx context.Context, method, target string, body io.Reader, contentType, traceID string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: "rate limit wait", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if traceID != "" {
		req.Header.Set(HeaderTraceID, traceID)
	}

	if ts := c.tokenSource(c.config.Current().API); ts != nil {
		token, err := ts.Token()
		if err != nil {
			return nil, tokenError(err)
		}
		token.SetAuthHeader(req)
	}

	logger.Debug("exchange: %s %s [%s]", method, req.URL.Path, traceID)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + req.URL.Path, Err: err}
	}
	return resp, nil
}

// tokenSource returns the client-credentials token source for api, rebuilding
// it when the credentials changed. Returns nil when no token URL is configured.
func (c *Client) tokenSource(api domain.APIConfig) oauth2.TokenSource {
	if api.TokenURL == "" {
		return nil
	}
	key := tokenKey{url: api.TokenURL, id: api.ClientID, secret: api.ClientSecret, scopes: strings.Join(api.Scopes, " ")}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens != nil && c.tokenK == key {
		return c.tokens
	}

	cc := clientcredentials.Config{
		ClientID:     api.ClientID,
		ClientSecret: api.ClientSecret,
		TokenURL:     api.TokenURL,
		Scopes:       slices.Clone(api.Scopes),
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
	c.tokens = cc.TokenSource(ctx)
	c.tokenK = key
	logger.Debug("exchange: token source rebuilt for client %s", api.ClientID)
	return c.tokens
}

// connectorURL builds {base}/connectors/{id}/{parts...}?mode=M.
func connectorURL(cfg *domain.Config, connector domain.Connector, parts ...string) string {
	segments := []string{strings.TrimRight(cfg.API.BaseURL, "/"), "connectors", url.PathEscape(connector.ID)}
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return strings.Join(segments, "/") + "?" + url.Values{"mode": {string(connector.Mode)}}.Encode()
}

func statusError(op string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, Code: resp.StatusCode, Body: body}
}
