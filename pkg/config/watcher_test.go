package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_EmitsChangeEvent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := NewWatcher()
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.yaml"), []byte("agents:\n"), 0o600))

	select {
	case event := <-w.Events():
		assert.Contains(t, event.Path, "agents.yaml")
	case <-time.After(3 * time.Second):
		t.Fatal("no change event received")
	}
}

func TestWatcher_IgnoresNonYAMLFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := NewWatcher()
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600))

	select {
	case event := <-w.Events():
		t.Fatalf("unexpected change event for %s", event.Path)
	case <-time.After(2 * debounceDelay):
	}
}

func TestWatcher_PendingReloadAfterShutdown(t *testing.T) {
	t.Parallel()

	w, err := NewWatcher()
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	// Arm the debounce timer, then shut down before it fires. The timer
	// must not send on the closed events channel.
	w.scheduleReload("agents.yaml")
	cancel()

	for range w.Events() {
	}

	time.Sleep(2 * debounceDelay)
}
