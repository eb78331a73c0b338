package index

import (
	"os"
	"strconv"

	"github.com/codexlab/codexcore/internal/paths"
)

// VerifyReport summarizes the sanity of a persisted index without loading
// its vector graph: dimension agreement between the manifest and the meta
// log, the meta log's record count against the manifest's own count, and
// whether a stale build lock is present.
type VerifyReport struct {
	ManifestExists  bool     `json:"manifest_exists"`
	TotalChunks     int      `json:"total_chunks"`
	MetaLogCount    int      `json:"meta_log_count"`
	DimensionsMatch bool     `json:"dimensions_match"`
	LockPresent     bool     `json:"lock_present"`
	Problems        []string `json:"problems,omitempty"`
}

// Verify inspects a project's persisted index for the mismatches
// Status leaves implicit.
func Verify(projectRoot string) (VerifyReport, error) {
	layout := paths.ForProject(projectRoot)

	manifest, err := loadManifest(layout.Manifest)
	if err != nil {
		return VerifyReport{}, err
	}
	if manifest == nil {
		return VerifyReport{Problems: []string{"no manifest: run index.build first"}}, nil
	}

	chunks, err := readMetaLogOrdered(layout.MetaLog)
	if err != nil {
		return VerifyReport{}, err
	}

	report := VerifyReport{
		ManifestExists:  true,
		TotalChunks:     manifest.TotalChunks,
		MetaLogCount:    len(chunks),
		DimensionsMatch: true,
	}

	if len(chunks) != manifest.TotalChunks {
		report.Problems = append(report.Problems, "meta log record count disagrees with manifest total_chunks")
	}
	for i, c := range chunks {
		if len(c.Embedding) != manifest.EmbeddingDim {
			report.DimensionsMatch = false
			report.Problems = append(report.Problems, "chunk "+strconv.Itoa(i)+" embedding width disagrees with manifest embedding_dim")
			break
		}
	}

	if _, err := os.Stat(layout.Lock); err == nil {
		report.LockPresent = true
		report.Problems = append(report.Problems, "stale lock file present")
	}

	return report, nil
}
