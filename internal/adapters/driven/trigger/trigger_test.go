package trigger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("<doc/>"), 0644))
	return path
}

// collect drains ch into a slice until n paths arrived or the timeout elapsed.
func collect(t *testing.T, ch <-chan string, n int, timeout time.Duration) []string {
	t.Helper()
	var got []string
	deadline := time.After(timeout)
	for len(got) < n {
		select {
		case p, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, p)
		case <-deadline:
			return got
		}
	}
	return got
}

func waitClosed(t *testing.T, ch <-chan string) {
	t.Helper()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNew(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Connectors = []domain.Connector{{ID: "a", Mode: domain.ModeTest, SourceFolder: "/in/a", TargetFolder: "/out/a"}}

	tr, err := New(&cfg)
	require.NoError(t, err)
	w, ok := tr.(*Watcher)
	require.True(t, ok)
	assert.Equal(t, []string{"/in/a"}, w.dirs)
	assert.Equal(t, cfg.Upload.BufferSize, w.buffer)

	cfg.Upload.Trigger = domain.TriggerPoll
	cfg.Upload.PollDelay = time.Second
	tr, err = New(&cfg)
	require.NoError(t, err)
	p, ok := tr.(*Poller)
	require.True(t, ok)
	assert.Equal(t, time.Second, p.delay)

	cfg.Upload.Trigger = "inotify"
	_, err = New(&cfg)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestWatcher_ReportsCreatedFiles(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	writeFile(t, dirA, "existing.xml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := NewWatcher([]string{dirA, dirB}, 4).Start(ctx)
	require.NoError(t, err)

	a := writeFile(t, dirA, "one.xml")
	b := writeFile(t, dirB, "two.xml")

	got := collect(t, ch, 2, 2*time.Second)
	assert.ElementsMatch(t, []string{a, b}, got)

	for _, p := range got {
		assert.True(t, filepath.IsAbs(p))
	}

	cancel()
	waitClosed(t, ch)
}

func TestWatcher_IgnoresNonCreateEvents(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "existing.xml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := NewWatcher([]string{dir}, 4).Start(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("<changed/>"), 0644))
	require.NoError(t, os.Remove(path))

	assert.Empty(t, collect(t, ch, 1, 200*time.Millisecond))
}

func TestWatcher_MissingDirectory(t *testing.T) {
	_, err := NewWatcher([]string{filepath.Join(t.TempDir(), "missing")}, 1).Start(context.Background())
	assert.Error(t, err)
}

func TestWatcher_StartTwice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher([]string{t.TempDir()}, 1)
	_, err := w.Start(ctx)
	require.NoError(t, err)

	_, err = w.Start(ctx)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestPoller_ReportsOldestFirst(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	now := time.Now()

	newest := writeFile(t, dirA, "newest.xml")
	oldest := writeFile(t, dirB, "oldest.xml")
	middle := writeFile(t, dirA, "middle.xml")
	require.NoError(t, os.Chtimes(newest, now, now))
	require.NoError(t, os.Chtimes(oldest, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, os.Chtimes(middle, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Mkdir(filepath.Join(dirA, "sub"), 0755))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := NewPoller([]string{dirA, dirB}, time.Hour, 8).Start(ctx)
	require.NoError(t, err)

	got := collect(t, ch, 3, 2*time.Second)
	assert.Equal(t, []string{oldest, middle, newest}, got)
}

func TestPoller_ReportsSymlinkedFiles(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, t.TempDir(), "real.xml")
	link := filepath.Join(dir, "linked.xml")
	require.NoError(t, os.Symlink(target, link))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := NewPoller([]string{dir}, time.Hour, 1).Start(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{link}, collect(t, ch, 1, 2*time.Second))
}

func TestPoller_RepeatsUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.xml")

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewPoller([]string{dir}, 10*time.Millisecond, 1).Start(ctx)
	require.NoError(t, err)

	got := collect(t, ch, 3, 2*time.Second)
	assert.Equal(t, []string{path, path, path}, got)

	cancel()
	waitClosed(t, ch)
}

func TestPoller_SkipsUnreadableDirectory(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.xml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	missing := filepath.Join(t.TempDir(), "missing")
	ch, err := NewPoller([]string{missing, dir}, time.Hour, 1).Start(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{path}, collect(t, ch, 1, 2*time.Second))
}

func TestPoller_StartTwice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPoller(nil, time.Hour, 1)
	_, err := p.Start(ctx)
	require.NoError(t, err)

	_, err = p.Start(ctx)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}
