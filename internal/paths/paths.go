// Package paths centralizes the on-disk layout codexcore reads and writes:
// the per-project index directory under the project root, and the
// per-user memory directory under its Codex home.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// IndexLayout is the set of paths under a project's .codex/index directory.
type IndexLayout struct {
	Root     string // {project_root}/.codex/index
	Manifest string // manifest.json
	Analytics string // analytics.json
	MetaLog  string // meta.jsonl
	Lock     string // lock
	Vectors  string // vectors (basename passed to the HNSW store, no extension)
}

// ForProject computes the index layout rooted at projectRoot.
func ForProject(projectRoot string) IndexLayout {
	root := filepath.Join(projectRoot, ".codex", "index")
	return IndexLayout{
		Root:      root,
		Manifest:  filepath.Join(root, "manifest.json"),
		Analytics: filepath.Join(root, "analytics.json"),
		MetaLog:   filepath.Join(root, "meta.jsonl"),
		Lock:      filepath.Join(root, "lock"),
		Vectors:   filepath.Join(root, "vectors"),
	}
}

// EnsureDirs creates the index root directory if it does not already exist.
func (l IndexLayout) EnsureDirs() error {
	return os.MkdirAll(l.Root, 0o755)
}

// MemoryLayout is the set of paths under <codex_home>/memory.
type MemoryLayout struct {
	Root     string // <codex_home>/memory
	Manifest string // manifest.jsonl
	GraphDir string // hnsw/
	Graph    string // hnsw/memory_store (basename passed to the HNSW store)
	Settings string // settings.json
	Metrics  string // metrics.json
}

// CodexHome resolves the Codex home directory, honoring CODEX_HOME, falling
// back to ~/.codex.
func CodexHome() (string, error) {
	if home := os.Getenv("CODEX_HOME"); home != "" {
		return home, nil
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".codex"), nil
}

// ForMemory computes the memory layout rooted at codexHome.
func ForMemory(codexHome string) MemoryLayout {
	root := filepath.Join(codexHome, "memory")
	graphDir := filepath.Join(root, "hnsw")
	return MemoryLayout{
		Root:      root,
		Manifest:  filepath.Join(root, "manifest.jsonl"),
		GraphDir:  graphDir,
		Graph:     filepath.Join(graphDir, "memory_store"),
		Settings:  filepath.Join(root, "settings.json"),
		Metrics:   filepath.Join(root, "metrics.json"),
	}
}

// EnsureDirs creates the memory root and graph directories.
func (l MemoryLayout) EnsureDirs() error {
	if err := os.MkdirAll(l.Root, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(l.GraphDir, 0o755)
}

// StripToRelative returns path relative to projectRoot when path sits under
// it, and the original path unchanged otherwise. Display only; never use
// the result to open files.
func StripToRelative(projectRoot, path string) string {
	rel, err := filepath.Rel(projectRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// ModelsDir is where externally-supplied embedder/summarizer providers may
// cache artifacts. codexcore never writes here itself (it supplies no
// bundled model) but exposes the path so an injected provider can use it.
func ModelsDir(codexHome string) string {
	return filepath.Join(codexHome, "models", "minicpm")
}
