package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codexlab/codexcore/internal/watcher"
)

func startMonitor(t *testing.T, dir string, opts watcher.Options) (*watcher.DeltaMonitor, context.CancelFunc) {
	t.Helper()
	opts.PollInterval = 20 * time.Millisecond
	opts.DisableFsnotify = true
	m := watcher.New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = m.Start(ctx, dir) }()
	// Let the initial snapshot settle.
	time.Sleep(30 * time.Millisecond)
	return m, cancel
}

func TestDeltaMonitor_DetectsNewFile(t *testing.T) {
	dir := t.TempDir()
	m, cancel := startMonitor(t, dir, watcher.DefaultOptions())
	defer cancel()
	defer func() { _ = m.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	select {
	case hint := <-m.Hints():
		assert.Contains(t, hint.ChangedPaths, "a.txt")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rebuild hint")
	}
}

func TestDeltaMonitor_DetectsModification(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	m, cancel := startMonitor(t, dir, watcher.DefaultOptions())
	defer cancel()
	defer func() { _ = m.Stop() }()

	time.Sleep(1100 * time.Millisecond) // cross the mtime-second boundary
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello world, much longer now"), 0o644))

	select {
	case hint := <-m.Hints():
		assert.Contains(t, hint.ChangedPaths, "a.txt")
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for rebuild hint")
	}
}

func TestDeltaMonitor_DetectsDeletion(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))

	m, cancel := startMonitor(t, dir, watcher.DefaultOptions())
	defer cancel()
	defer func() { _ = m.Stop() }()

	require.NoError(t, os.Remove(target))

	select {
	case hint := <-m.Hints():
		assert.Contains(t, hint.ChangedPaths, "a.txt")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rebuild hint")
	}
}

func TestDeltaMonitor_IgnoresGitDirAndIndexDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".codex", "index"), 0o755))

	opts := watcher.DefaultOptions()
	opts.IndexDir = ".codex"
	m, cancel := startMonitor(t, dir, opts)
	defer cancel()
	defer func() { _ = m.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codex", "index", "manifest.json"), []byte("{}"), 0o644))

	select {
	case hint := <-m.Hints():
		t.Fatalf("unexpected hint for ignored paths: %v", hint.ChangedPaths)
	case <-time.After(300 * time.Millisecond):
		// No hint expected.
	}
}

func TestDeltaMonitor_HonoursGitignore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.tmp\n"), 0o644))

	m, cancel := startMonitor(t, dir, watcher.DefaultOptions())
	defer cancel()
	defer func() { _ = m.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "debug.tmp"), []byte("noisy"), 0o644))

	select {
	case hint := <-m.Hints():
		t.Fatalf("unexpected hint for gitignored path: %v", hint.ChangedPaths)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDeltaMonitor_StopClosesChannels(t *testing.T) {
	dir := t.TempDir()
	m, cancel := startMonitor(t, dir, watcher.DefaultOptions())
	defer cancel()

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop()) // idempotent

	_, hintsOpen := <-m.Hints()
	assert.False(t, hintsOpen)
	_, errsOpen := <-m.Errors()
	assert.False(t, errsOpen)
}

func TestDeltaMonitor_WatcherType(t *testing.T) {
	dir := t.TempDir()
	opts := watcher.DefaultOptions()
	opts.DisableFsnotify = true
	m := watcher.New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Start(ctx, dir) }()
	time.Sleep(30 * time.Millisecond)
	defer func() { _ = m.Stop() }()

	assert.Equal(t, "polling", m.WatcherType())
}
