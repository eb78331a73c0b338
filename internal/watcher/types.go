package watcher

import "time"

// Signature is the cheap per-file fingerprint the monitor diffs between
// snapshots: modification time at seconds resolution, plus size. Neither
// field alone is sufficient (truncate-then-rewrite-within-a-second
// preserves mtime; touch-without-write preserves size) but the pair
// catches both.
type Signature struct {
	ModTimeSecs int64
	Size        int64
}

// RebuildHint is emitted whenever a snapshot diff finds at least one added,
// removed, or changed path. It is a signal, not a command: nothing in this
// package triggers an index rebuild from it.
type RebuildHint struct {
	ChangedPaths []string
	Timestamp    time.Time
}

// Options configures a DeltaMonitor.
type Options struct {
	// PollInterval is the interval between snapshot diffs.
	// Default: 5s
	PollInterval time.Duration

	// HintBufferSize is the size of the hint channel buffer.
	// Default: 16
	HintBufferSize int

	// IgnorePatterns are additional gitignore-syntax patterns to exclude
	// beyond .gitignore and the hard-coded exclusions.
	IgnorePatterns []string

	// IndexDir, if non-empty, is a project-relative directory excluded from
	// snapshots (the index's own output directory, so a build's writes never
	// trigger a self-observation).
	IndexDir string

	// DisableFsnotify forces pure-polling mode even when fsnotify would
	// otherwise initialize successfully. Useful for deterministic tests.
	DisableFsnotify bool
}

// DefaultOptions returns the default monitor options.
func DefaultOptions() Options {
	return Options{
		PollInterval:   5 * time.Second,
		HintBufferSize: 16,
	}
}

// WithDefaults returns opts with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.PollInterval == 0 {
		o.PollInterval = d.PollInterval
	}
	if o.HintBufferSize == 0 {
		o.HintBufferSize = d.HintBufferSize
	}
	return o
}
