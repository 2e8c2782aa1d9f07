package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/conneroisu/plonepack/internal/logging"
)

func TestOpString(t *testing.T) {
	testCases := []struct {
		op       Op
		expected string
	}{
		{OpCreated, "created"},
		{OpModified, "modified"},
		{OpRemoved, "removed"},
		{OpRenamed, "renamed"},
		{Op(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.op.String())
		})
	}
}

func TestPatternFilter(t *testing.T) {
	root := filepath.Join("theme")
	f := PatternFilter(root, []string{"**/*.html", "**/*.pt"})

	assert.True(t, f(filepath.Join(root, "index.html")))
	assert.True(t, f(filepath.Join(root, "templates", "main.pt")))
	assert.False(t, f(filepath.Join(root, "style.css")))
	assert.False(t, f(filepath.Join("elsewhere", "index.html")))
}

// startWatcher runs a watcher on a fresh directory and forwards batches.
func startWatcher(t *testing.T, delay time.Duration) (string, <-chan []Event) {
	t.Helper()
	dir := t.TempDir()

	w, err := New(delay, logging.Nop())
	require.NoError(t, err)
	w.AddFilter(PatternFilter(dir, []string{"**/*.html"}))

	batches := make(chan []Event, 8)
	w.AddHandler(func(ctx context.Context, events []Event) error {
		batches <- events
		return nil
	})
	require.NoError(t, w.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return dir, batches
}

func waitBatch(t *testing.T, batches <-chan []Event) []Event {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
		return nil
	}
}

func TestWatcherDebouncesChanges(t *testing.T) {
	dir, batches := startWatcher(t, 100*time.Millisecond)

	path := filepath.Join(dir, "index.html")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o644))
	}

	batch := waitBatch(t, batches)
	require.Len(t, batch, 1)
	assert.Equal(t, path, batch[0].Path)

	select {
	case extra := <-batches:
		t.Fatalf("unexpected second batch %v", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherIgnoresFilteredPaths(t *testing.T) {
	dir, batches := startWatcher(t, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.css"), []byte("a{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte("<p>"), 0o644))

	batch := waitBatch(t, batches)
	require.Len(t, batch, 1)
	assert.Equal(t, filepath.Join(dir, "page.html"), batch[0].Path)
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir, batches := startWatcher(t, 50*time.Millisecond)

	sub := filepath.Join(dir, "templates")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to add the new directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "main.html"), []byte("<p>"), 0o644))

	batch := waitBatch(t, batches)
	var paths []string
	for _, e := range batch {
		paths = append(paths, e.Path)
	}
	assert.Contains(t, paths, filepath.Join(sub, "main.html"))
}

func TestAddRecursiveSkipsHidden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "objects"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "x"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "templates"), 0o755))

	w, err := New(time.Millisecond, nil)
	require.NoError(t, err)
	defer w.fs.Close()

	require.NoError(t, w.AddRecursive(dir))
	watched := w.fs.WatchList()
	assert.ElementsMatch(t, []string{dir, filepath.Join(dir, "templates")}, watched)
}

func TestRunReleasesWatch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	w, err := New(10*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, w.AddRecursive(t.TempDir()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
}
