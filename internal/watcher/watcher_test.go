package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipr-host/internal/state"
)

func waitStale(t *testing.T, want bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for state.IsStale() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected stale=%v within %s", want, timeout)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcherFlagsStaleOnWrite(t *testing.T) {
	state.Reset(8000)

	dir := t.TempDir()
	reqFile := filepath.Join(dir, "requirements.txt")
	require.NoError(t, os.WriteFile(reqFile, []byte("streamlit==1.30\n"), 0o644))

	w, err := New(reqFile)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give the watch loop a moment to start.
	time.Sleep(50 * time.Millisecond)
	assert.False(t, state.IsStale())

	require.NoError(t, os.WriteFile(reqFile, []byte("streamlit==1.31\n"), 0o644))
	waitStale(t, true, 3*time.Second)
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	state.Reset(8000)

	dir := t.TempDir()
	reqFile := filepath.Join(dir, "requirements.txt")
	require.NoError(t, os.WriteFile(reqFile, []byte("streamlit\n"), 0o644))

	w, err := New(reqFile)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))

	// The unrelated write must not flip the flag.
	time.Sleep(300 * time.Millisecond)
	assert.False(t, state.IsStale())
}

func TestWatcherSeesLaterCreate(t *testing.T) {
	state.Reset(8000)

	dir := t.TempDir()
	reqFile := filepath.Join(dir, "requirements.txt")

	// File does not exist yet; the directory watch picks up the create.
	w, err := New(reqFile)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(reqFile, []byte("streamlit\n"), 0o644))
	waitStale(t, true, 3*time.Second)
}

func TestWatcherSkipsEmptyPaths(t *testing.T) {
	w, err := New("", "")
	require.NoError(t, err)
	assert.Empty(t, w.files)
	w.fsw.Close()
}
