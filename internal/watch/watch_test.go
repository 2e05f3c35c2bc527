package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// start runs w in the background and returns a stop function that waits for
// Run to return.
func start(t *testing.T, w *Watcher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

func waitReason(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("no %s run observed", want)
	}
}

func TestWatcher_InitialAndChange(t *testing.T) {
	dir := t.TempDir()
	svd := filepath.Join(dir, "soc.svd")
	require.NoError(t, os.WriteFile(svd, []byte("a"), 0o600))

	runs := make(chan string, 100)
	w, err := New([]string{svd}, func(_ context.Context, reason string) error {
		runs <- reason
		return nil
	}, Options{Debounce: 100 * time.Millisecond, Initial: true, Logger: quiet()})
	require.NoError(t, err)

	stop := start(t, w)
	defer stop()

	waitReason(t, runs, ReasonInitial)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(svd, []byte("b"), 0o600))
	waitReason(t, runs, ReasonChange)

	select {
	case extra := <-runs:
		t.Fatalf("unexpected extra run: %s", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_IntervalRecheck(t *testing.T) {
	svd := filepath.Join(t.TempDir(), "soc.svd")
	require.NoError(t, os.WriteFile(svd, []byte("a"), 0o600))

	runs := make(chan string, 100)
	w, err := New([]string{svd}, func(_ context.Context, reason string) error {
		runs <- reason
		return errors.New("tool missing")
	}, Options{Interval: 50 * time.Millisecond, Logger: quiet()})
	require.NoError(t, err)

	stop := start(t, w)
	defer stop()

	// Failing runs do not stop the watcher.
	waitReason(t, runs, ReasonInterval)
	waitReason(t, runs, ReasonInterval)
}

func TestNew_RequiresPaths(t *testing.T) {
	_, err := New([]string{"", ""}, func(context.Context, string) error { return nil }, Options{})
	assert.Error(t, err)
}
