// Package watcher implements DeltaMonitor: a periodic snapshot-diff observer
// over a project tree.
//
// Unlike a conventional file watcher, DeltaMonitor never classifies
// individual operations and never drives a rebuild itself. It keeps a
// path -> (mtime, size) snapshot, diffs it on every tick, and emits a
// RebuildHint naming the changed paths when the diff is non-empty. Callers
// decide whether and when to act on a hint; the monitor is observational
// only.
//
// An fsnotify watch is layered on top as a fast path: an fsnotify event
// wakes the monitor for an out-of-cycle diff instead of waiting for the next
// tick. If fsnotify fails to initialize (network mounts, some container
// filesystems), the monitor degrades to pure polling at PollInterval.
//
// Usage:
//
//	m := watcher.New(watcher.DefaultOptions())
//	if err := m.Start(ctx, "/path/to/project"); err != nil {
//	    return err
//	}
//	defer m.Stop()
//
//	for hint := range m.Hints() {
//	    log.Printf("changed: %v", hint.ChangedPaths)
//	}
package watcher
