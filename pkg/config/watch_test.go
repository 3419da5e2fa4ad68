package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(p, []byte("{}"), 0644))

	w, err := NewWatcher(p)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 1)
	go w.Run(ctx, changed)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crash_log.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(p, []byte(`{"batteryHealthGuardEnabled": true}`), 0644))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected a change notification")
	}
}
