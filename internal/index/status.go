package index

import (
	"os"

	"github.com/codexlab/codexcore/internal/paths"
)

// Status reports the persisted manifest and analytics for a project. A
// project that has never been built successfully returns a zero Manifest
// alongside whatever analytics exist (possibly also zero, if no build was
// ever attempted).
func Status(projectRoot string) (Manifest, Analytics, error) {
	layout := paths.ForProject(projectRoot)

	manifest, err := loadManifest(layout.Manifest)
	if err != nil {
		return Manifest{}, Analytics{}, err
	}
	analytics, err := loadAnalytics(layout.Analytics)
	if err != nil {
		return Manifest{}, Analytics{}, err
	}
	if manifest == nil {
		return Manifest{}, *analytics, nil
	}
	return *manifest, *analytics, nil
}

// Clean removes a project's entire .codex/index directory, including the
// manifest, analytics, meta log, lock, and vector graph dump.
func Clean(projectRoot string) error {
	layout := paths.ForProject(projectRoot)
	return os.RemoveAll(layout.Root)
}
