package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
)

// --- Exchange client ---

// mockExchangeClient implements driven.ExchangeClient for testing.
// Every call is recorded in order.
type mockExchangeClient struct {
	mu    sync.Mutex
	calls []string

	uploadFn   func(attempt int, file string) domain.UploadResult
	uploads    int
	uploadedAt []time.Time

	// pending holds queued documents per connector key.
	pending  map[string][]string
	staging  string
	ackErr   error
	acked    []string
	failNext map[string]error

	renewFn func(attempt int) (string, error)
	renews  int
}

func newMockExchangeClient() *mockExchangeClient {
	return &mockExchangeClient{
		pending:  make(map[string][]string),
		failNext: make(map[string]error),
	}
}

func (m *mockExchangeClient) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *mockExchangeClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockExchangeClient) DownloadNext(_ context.Context, connector domain.Connector, _ string) domain.DownloadResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("next:" + connector.Key())

	if err, ok := m.failNext[connector.Key()]; ok {
		return domain.DownloadFailed(err)
	}
	queue := m.pending[connector.Key()]
	if len(queue) == 0 {
		return domain.NoDocumentPending()
	}
	doc := queue[0]
	m.pending[connector.Key()] = queue[1:]

	file := filepath.Join(m.staging, doc+"."+ExtDownload)
	if err := os.WriteFile(file, []byte("<doc id=\""+doc+"\"/>"), 0644); err != nil {
		return domain.DownloadFailed(err)
	}
	return domain.Downloaded(doc, file, "")
}

func (m *mockExchangeClient) Acknowledge(_ context.Context, connector domain.Connector, documentID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ack:" + connector.Key() + ":" + documentID)
	if m.ackErr != nil {
		return m.ackErr
	}
	m.acked = append(m.acked, documentID)
	return nil
}

func (m *mockExchangeClient) Upload(_ context.Context, connector domain.Connector, file, _ string) domain.UploadResult {
	m.mu.Lock()
	m.record("upload:" + connector.Key() + ":" + filepath.Base(file))
	m.uploads++
	attempt := m.uploads
	m.uploadedAt = append(m.uploadedAt, time.Now())
	fn := m.uploadFn
	m.mu.Unlock()

	if fn == nil {
		return domain.UploadOK()
	}
	return fn(attempt, file)
}

func (m *mockExchangeClient) RenewSecret(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	m.record("renew")
	m.renews++
	attempt := m.renews
	fn := m.renewFn
	m.mu.Unlock()

	if fn == nil {
		return "renewed-secret", nil
	}
	return fn(attempt)
}

// --- Configuration ---

// mockConfigSource implements driven.ConfigSource for testing.
type mockConfigSource struct {
	name    string
	origins map[string]domain.CredentialOrigin
}

func (s *mockConfigSource) Name() string { return s.name }

func (s *mockConfigSource) Values() map[string]any { return map[string]any{} }

func (s *mockConfigSource) Origin(key string) (domain.CredentialOrigin, bool) {
	o, ok := s.origins[key]
	return o, ok
}

// fileSource returns a source that defines the secret in the file at path.
func fileSource(path string) *mockConfigSource {
	return &mockConfigSource{
		name: "file:" + path,
		origins: map[string]domain.CredentialOrigin{
			domain.SecretKey: {Source: "file:" + path, Location: path, FileBacked: true},
		},
	}
}

// mockConfigProvider implements driven.ConfigProvider for testing.
type mockConfigProvider struct {
	mu        sync.Mutex
	cfg       *domain.Config
	sources   []driven.ConfigSource
	reloadErr error
	reloads   atomic.Int32
}

func newMockConfigProvider(cfg domain.Config, sources ...driven.ConfigSource) *mockConfigProvider {
	return &mockConfigProvider{cfg: &cfg, sources: sources}
}

func (p *mockConfigProvider) Current() *domain.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// set replaces the current configuration the way a reload does.
func (p *mockConfigProvider) set(cfg domain.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = &cfg
}

func (p *mockConfigProvider) Reload() error {
	p.reloads.Add(1)
	return p.reloadErr
}

func (p *mockConfigProvider) Sources() []driven.ConfigSource {
	return p.sources
}

// mockConfigWriter implements driven.ConfigWriter for testing.
type mockConfigWriter struct {
	mu          sync.Mutex
	writableErr error
	rewriteErr  error
	rewrites    []string
}

func (w *mockConfigWriter) Writable(_ string) error {
	return w.writableErr
}

func (w *mockConfigWriter) Rewrite(path string, kind domain.FileKind, key, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rewriteErr != nil {
		return w.rewriteErr
	}
	w.rewrites = append(w.rewrites, path+"|"+string(kind)+"|"+key+"="+value)
	return nil
}

// --- Trigger ---

// chanTrigger implements driven.Trigger over a caller-owned channel.
type chanTrigger struct {
	paths chan string
	err   error
}

func (t *chanTrigger) Start(_ context.Context) (<-chan string, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.paths, nil
}

// --- Scheduler store ---

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu       sync.RWMutex
	tasks    map[string]*domain.ScheduledTask
	results  map[string][]domain.TaskResult
	saveErr  error
	getErr   error
	pruneErr error
	pruned   []int
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.TaskID] = append(m.results[result.TaskID], *result)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.results[taskID]
	out := make([]domain.TaskResult, 0, len(results))
	for i := len(results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, results[i])
	}
	return out, nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = append(m.pruned, keep)
	return m.pruneErr
}

func (m *mockSchedulerStore) resultCount(taskID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results[taskID])
}

// --- Helpers ---

// newTestConnector creates a connector with fresh source and target folders.
func newTestConnector(t *testing.T, id string, mode domain.Mode) domain.Connector {
	t.Helper()
	root := t.TempDir()
	c := domain.Connector{
		ID:           id,
		Mode:         mode,
		ContentType:  "application/xml",
		SourceFolder: filepath.Join(root, "out"),
		TargetFolder: filepath.Join(root, "in"),
	}
	require.NoError(t, os.MkdirAll(c.SourceFolder, 0755))
	require.NoError(t, os.MkdirAll(c.TargetFolder, 0755))
	return c
}

// writeFile creates a file and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
