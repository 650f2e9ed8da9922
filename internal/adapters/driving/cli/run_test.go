package cli

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exchangeServer accepts uploads and serves a single pending document.
type exchangeServer struct {
	mu       sync.Mutex
	uploads  []string
	acked    []string
	served   bool
	traceIDs map[string]bool
}

func (s *exchangeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.traceIDs == nil {
		s.traceIDs = make(map[string]bool)
	}
	s.traceIDs[r.Header.Get("X-Trace-Id")] = true

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/connectors/acme/documents":
		body, _ := io.ReadAll(r.Body)
		s.uploads = append(s.uploads, string(body))
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet && r.URL.Path == "/connectors/acme/documents/next":
		if s.served {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.served = true
		w.Header().Set("X-Document-Id", "doc-1")
		_, _ = io.WriteString(w, "<inbound/>")
	case r.Method == http.MethodPost && r.URL.Path == "/connectors/acme/documents/doc-1/ack":
		s.acked = append(s.acked, "doc-1")
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *exchangeServer) snapshot() (uploads, acked []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploads...), append([]string(nil), s.acked...)
}

const runConfig = `
agent:
  shutdown-grace: 2s
api:
  base-url: %s
  requests-per-second: 0
upload:
  trigger: poll
  poll-delay: 20ms
download:
  schedule-delay: 50ms
  local-folder: %s
log:
  level: error
connectors:
  - id: acme
    mode: TEST
    source-folder: %s
    target-folder: %s
`

func TestRunCmd_SynchronisesUntilCancelled(t *testing.T) {
	srv := &exchangeServer{}
	api := httptest.NewServer(srv)
	defer api.Close()

	root := t.TempDir()
	source := filepath.Join(root, "out")
	target := filepath.Join(root, "in")
	require.NoError(t, os.Mkdir(source, 0755))
	require.NoError(t, os.Mkdir(target, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(source, "invoice.xml"), []byte("<outbound/>"), 0644))

	path := writeConfig(t, runConfig, api.URL, filepath.Join(root, "staging"), source, target)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		out string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := execute(ctx, "run", "--config", path)
		done <- outcome{out, err}
	}()

	require.Eventually(t, func() bool {
		uploads, acked := srv.snapshot()
		return len(uploads) == 1 && len(acked) == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(target, "doc-1.xml"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(source)
		return err == nil && len(entries) == 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Contains(t, res.out, "Agent running with 1 connector(s)")
		assert.Contains(t, res.out, "Agent stopped.")
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}

	uploads, _ := srv.snapshot()
	assert.Equal(t, []string{"<outbound/>"}, uploads)

	data, err := os.ReadFile(filepath.Join(target, "doc-1.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<inbound/>", string(data))

	assert.NotContains(t, srv.traceIDs, "")
}

func TestRunCmd_RejectsArguments(t *testing.T) {
	_, err := execute(context.Background(), "run", "extra")
	assert.Error(t, err)
}
