package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/exchange-agent/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/exchange-agent/internal/core/domain"
)

const historyConfig = `
agent:
  state-dir: %s
download:
  enabled: false
log:
  level: error
`

// seedHistory records a task and two runs in the state directory.
func seedHistory(t *testing.T, dir string) {
	t.Helper()
	store, err := sqlite.NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	s := store.SchedulerStore()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDDocumentDownload,
		Name:     domain.TaskName(domain.TaskIDDocumentDownload),
		Interval: 30 * time.Second,
		LastRun:  start.Add(time.Minute),
		Enabled:  true,
	}))
	require.NoError(t, s.RecordResult(ctx, &domain.TaskResult{
		TaskID:         domain.TaskIDDocumentDownload,
		StartedAt:      start,
		EndedAt:        start.Add(1500 * time.Millisecond),
		Success:        true,
		ItemsProcessed: 7,
	}))
	require.NoError(t, s.RecordResult(ctx, &domain.TaskResult{
		TaskID:    domain.TaskIDDocumentDownload,
		StartedAt: start.Add(time.Minute),
		EndedAt:   start.Add(time.Minute + time.Second),
		Error:     "remote error: HTTP 503",
		TraceID:   "4f1c2a",
	}))
}

func TestHistoryCmd_ListsTasks(t *testing.T) {
	dir := t.TempDir()
	seedHistory(t, dir)
	path := writeConfig(t, historyConfig, dir)

	out, err := execute(context.Background(), "history", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "TASK")
	assert.Contains(t, out, domain.TaskIDDocumentDownload)
	assert.Contains(t, out, "30s")
	assert.NotContains(t, out, "not persisted")
}

func TestHistoryCmd_ListsRuns(t *testing.T) {
	dir := t.TempDir()
	seedHistory(t, dir)
	path := writeConfig(t, historyConfig, dir)

	out, err := execute(context.Background(), "history", domain.TaskIDDocumentDownload, "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Document Download (2 most recent runs)")
	assert.Contains(t, out, "remote error: HTTP 503")
	assert.Contains(t, out, "4f1c2a")
	assert.Contains(t, out, "1.5s")
	assert.Less(t, strings.Index(out, "failed"), strings.Index(out, "ok"))

	out, err = execute(context.Background(), "history", domain.TaskIDDocumentDownload, "-n", "1", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "(1 most recent runs)")
	assert.NotContains(t, out, "1.5s")
}

func TestHistoryCmd_EmptyAndInvalid(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, historyConfig, dir)

	out, err := execute(context.Background(), "history", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks recorded.")

	out, err = execute(context.Background(), "history", "unknown-task", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded for unknown-task.")

	_, err = execute(context.Background(), "history", "unknown-task", "--limit", "0", "--config", path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHistoryCmd_WithoutStateDir(t *testing.T) {
	path := writeConfig(t, "download:\n  enabled: false\nlog:\n  level: error\n")

	out, err := execute(context.Background(), "history", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "history is not persisted")
	assert.Contains(t, out, "No tasks recorded.")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))
	assert.NotEqual(t, "-", formatTime(time.Now()))
	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "x", orDash("x"))
}
