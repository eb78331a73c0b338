package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codexlab/codexcore/internal/gitignore"
)

// DeltaMonitor periodically diffs a project tree's file signatures and
// emits RebuildHints. It never triggers an index build itself.
type DeltaMonitor struct {
	opts     Options
	rootPath string

	mu        sync.Mutex
	snapshot  map[string]Signature
	gitignore *gitignore.Matcher

	fsWatcher   *fsnotify.Watcher
	useFsnotify bool

	hints   chan RebuildHint
	errors  chan error
	stopCh  chan struct{}
	wake    chan struct{}
	stopped bool
}

// New creates a DeltaMonitor with the given options.
func New(opts Options) *DeltaMonitor {
	opts = opts.WithDefaults()
	return &DeltaMonitor{
		opts:      opts,
		snapshot:  make(map[string]Signature),
		gitignore: gitignore.New(),
		hints:     make(chan RebuildHint, opts.HintBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		wake:      make(chan struct{}, 1),
	}
}

// Start begins monitoring the given directory. It blocks until ctx is
// cancelled or Stop is called.
func (m *DeltaMonitor) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	m.rootPath = absPath

	m.loadGitignore()
	if _, err := m.snapshotTree(); err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}

	if !m.opts.DisableFsnotify {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			m.fsWatcher = fsw
			m.useFsnotify = true
			if err := m.addRecursive(m.rootPath); err != nil {
				_ = fsw.Close()
				m.fsWatcher = nil
				m.useFsnotify = false
			} else {
				go m.pumpFsnotify(ctx)
			}
		}
	}

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = m.Stop()
			return ctx.Err()
		case <-m.stopCh:
			return nil
		case <-ticker.C:
			m.diffOnce()
		case <-m.wake:
			m.diffOnce()
		}
	}
}

// pumpFsnotify drains fsnotify events and requests an out-of-cycle diff
// instead of translating each event into a hint directly: the snapshot
// diff is the single source of truth for what changed.
func (m *DeltaMonitor) pumpFsnotify(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case event, ok := <-m.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = m.fsWatcher.Add(event.Name)
				}
			}
			select {
			case m.wake <- struct{}{}:
			default:
			}
		case err, ok := <-m.fsWatcher.Errors:
			if !ok {
				return
			}
			m.emitError(err)
		}
	}
}

// addRecursive adds every non-ignored directory under root to the fsnotify
// watch set.
func (m *DeltaMonitor) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		relPath, _ := filepath.Rel(root, path)
		if relPath == "." {
			return m.fsWatcher.Add(path)
		}
		if m.shouldIgnoreDir(relPath) {
			return filepath.SkipDir
		}
		return m.fsWatcher.Add(path)
	})
}

// diffOnce takes a fresh snapshot, compares it against the previous one,
// and emits a RebuildHint if anything changed.
func (m *DeltaMonitor) diffOnce() {
	current, err := m.snapshotTree()
	if err != nil {
		m.emitError(err)
		return
	}

	m.mu.Lock()
	previous := m.snapshot
	m.mu.Unlock()

	changed := diffSnapshots(previous, current)

	m.mu.Lock()
	m.snapshot = current
	m.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	m.emitHint(RebuildHint{ChangedPaths: changed, Timestamp: time.Now()})
}

// diffSnapshots returns the sorted set of paths present in exactly one of
// previous/current, or present in both with a differing Signature.
func diffSnapshots(previous, current map[string]Signature) []string {
	var changed []string
	for path, sig := range current {
		prev, ok := previous[path]
		if !ok || prev != sig {
			changed = append(changed, path)
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed
}

// snapshotTree walks rootPath and builds a fresh path -> Signature map,
// honouring .gitignore and the hard-coded exclusions.
func (m *DeltaMonitor) snapshotTree() (map[string]Signature, error) {
	snap := make(map[string]Signature)

	err := filepath.WalkDir(m.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		relPath, relErr := filepath.Rel(m.rootPath, path)
		if relErr != nil || relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if m.shouldIgnoreDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}
		if m.shouldIgnoreFile(relPath) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		snap[relPath] = Signature{ModTimeSecs: info.ModTime().Unix(), Size: info.Size()}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return snap, nil
}

func (m *DeltaMonitor) shouldIgnoreDir(relPath string) bool {
	if relPath == ".git" || strings.HasPrefix(relPath, ".git/") {
		return true
	}
	if relPath == "target" || strings.HasPrefix(relPath, "target/") {
		return true
	}
	if relPath == "node_modules" || strings.HasPrefix(relPath, "node_modules/") {
		return true
	}
	if m.opts.IndexDir != "" && (relPath == m.opts.IndexDir || strings.HasPrefix(relPath, m.opts.IndexDir+"/")) {
		return true
	}
	m.mu.Lock()
	gi := m.gitignore
	m.mu.Unlock()
	return gi.Match(relPath, true)
}

func (m *DeltaMonitor) shouldIgnoreFile(relPath string) bool {
	base := filepath.Base(relPath)
	if base == "Cargo.lock" || strings.HasSuffix(base, ".log") {
		return true
	}
	m.mu.Lock()
	gi := m.gitignore
	m.mu.Unlock()
	return gi.Match(relPath, false)
}

// loadGitignore (re)builds the gitignore matcher from the root .gitignore
// file, nested .gitignore files, and any configured extra patterns.
func (m *DeltaMonitor) loadGitignore() {
	gi := gitignore.New()
	for _, pattern := range m.opts.IgnorePatterns {
		gi.AddPattern(pattern)
	}

	rootGitignore := filepath.Join(m.rootPath, ".gitignore")
	if err := gi.AddFromFile(rootGitignore, ""); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load root .gitignore", slog.String("path", rootGitignore), slog.String("error", err.Error()))
	}

	_ = filepath.WalkDir(m.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if d.Name() != ".gitignore" || path == rootGitignore {
			return nil
		}
		base, _ := filepath.Rel(m.rootPath, filepath.Dir(path))
		if err := gi.AddFromFile(path, base); err != nil {
			slog.Warn("failed to read nested .gitignore", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})

	m.mu.Lock()
	m.gitignore = gi
	m.mu.Unlock()
}

func (m *DeltaMonitor) emitHint(hint RebuildHint) {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return
	}
	select {
	case m.hints <- hint:
	default:
		slog.Warn("rebuild hint buffer full, dropping hint", slog.Int("changed", len(hint.ChangedPaths)))
	}
}

func (m *DeltaMonitor) emitError(err error) {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return
	}
	select {
	case m.errors <- err:
	default:
	}
}

// Stop stops the monitor and releases resources. Safe to call multiple times.
func (m *DeltaMonitor) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	m.mu.Unlock()

	close(m.stopCh)
	if m.useFsnotify && m.fsWatcher != nil {
		_ = m.fsWatcher.Close()
	}
	close(m.hints)
	close(m.errors)
	return nil
}

// Hints returns the channel of rebuild hints. Closed when the monitor stops.
func (m *DeltaMonitor) Hints() <-chan RebuildHint {
	return m.hints
}

// Errors returns the channel of non-fatal monitor errors. Closed when the
// monitor stops.
func (m *DeltaMonitor) Errors() <-chan error {
	return m.errors
}

// WatcherType reports which fast path the monitor is using.
func (m *DeltaMonitor) WatcherType() string {
	if m.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}
