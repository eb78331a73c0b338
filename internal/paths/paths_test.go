package paths_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codexlab/codexcore/internal/paths"
)

func TestForProject(t *testing.T) {
	layout := paths.ForProject("/repo")
	assert.Equal(t, "/repo/.codex/index", layout.Root)
	assert.Equal(t, filepath.Join(layout.Root, "manifest.json"), layout.Manifest)
	assert.Equal(t, filepath.Join(layout.Root, "lock"), layout.Lock)
}

func TestForMemory(t *testing.T) {
	layout := paths.ForMemory("/home/u/.codex")
	assert.Equal(t, "/home/u/.codex/memory", layout.Root)
	assert.Equal(t, filepath.Join(layout.Root, "hnsw", "memory_store"), layout.Graph)
}

func TestCodexHomeHonorsEnv(t *testing.T) {
	t.Setenv("CODEX_HOME", "/custom/home")
	home, err := paths.CodexHome()
	assert.NoError(t, err)
	assert.Equal(t, "/custom/home", home)
}

func TestEnsureDirsCreatesTree(t *testing.T) {
	dir := t.TempDir()
	layout := paths.ForProject(dir)
	assert.NoError(t, layout.EnsureDirs())

	mem := paths.ForMemory(dir)
	assert.NoError(t, mem.EnsureDirs())
}

func TestStripToRelative(t *testing.T) {
	assert.Equal(t, filepath.Join("src", "a.go"), paths.StripToRelative("/proj", "/proj/src/a.go"))
	assert.Equal(t, "/elsewhere/b.go", paths.StripToRelative("/proj", "/elsewhere/b.go"))
	assert.Equal(t, "/proj", paths.StripToRelative("/proj/nested", "/proj"))
}
