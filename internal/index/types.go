// Package index implements CodeIndex: building a searchable semantic index
// of a project's source files and answering similarity queries against it.
package index

import (
	"errors"
	"time"

	cxerrors "github.com/codexlab/codexcore/internal/errors"
)

// ManifestVersion is the manifest schema version written by this build of
// the engine.
const ManifestVersion = 1

// Manifest is the authoritative record of the most recent successful build.
type Manifest struct {
	Version        int       `json:"version"`
	EmbeddingModel string    `json:"embedding_model"`
	EmbeddingDim   int       `json:"embedding_dim"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	TotalFiles     int       `json:"total_files"`
	TotalChunks    int       `json:"total_chunks"`
	LinesPerChunk  int       `json:"lines_per_chunk"`
	Overlap        int       `json:"overlap"`
}

// Analytics accumulates counters and timings across builds, independent of
// whether any individual build succeeded.
type Analytics struct {
	LastAttemptAt  *time.Time `json:"last_attempt_ts,omitempty"`
	LastSuccessAt  *time.Time `json:"last_success_ts,omitempty"`
	LastDurationMs int64      `json:"last_duration_ms"`
	LastError      string     `json:"last_error,omitempty"`
	BuildCount     uint64     `json:"build_count"`
}

// recordAttempt marks the start of a build.
func (a *Analytics) recordAttempt(at time.Time) {
	a.LastAttemptAt = &at
}

// recordSuccess marks a build completing without error, advancing
// BuildCount with saturating-add semantics (it will not wrap past
// math.MaxUint64).
func (a *Analytics) recordSuccess(at time.Time, duration time.Duration) {
	a.LastSuccessAt = &at
	a.LastDurationMs = duration.Milliseconds()
	a.LastError = ""
	if a.BuildCount != ^uint64(0) {
		a.BuildCount++
	}
}

// recordFailure keeps the bare failure message in last_error; for a
// CodexError that is Message alone, without the code prefix Error() adds.
func (a *Analytics) recordFailure(duration time.Duration, err error) {
	a.LastDurationMs = duration.Milliseconds()
	if err == nil {
		return
	}
	var ce *cxerrors.CodexError
	if errors.As(err, &ce) {
		a.LastError = ce.Message
		return
	}
	a.LastError = err.Error()
}

// StoredChunk is the persisted form of a chunk: its position-addressed
// identity, text-addressable metadata, and the embedding vector computed
// for its snippet. meta.jsonl holds one StoredChunk per line, in
// (file_path, start_line) lexicographic order, and ChunkID is exactly that
// line's dense, zero-based position — it is reassigned on every build,
// while Checksum (the content hash) is what survives across builds and
// drives embedding reuse.
type StoredChunk struct {
	ChunkID   int       `json:"chunk_id"`
	FilePath  string    `json:"file_path"`
	StartLine int       `json:"start_line"`
	EndLine   int       `json:"end_line"`
	Checksum  string    `json:"checksum"`
	Snippet   string    `json:"snippet"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueryHit is a single ranked result from Query.
type QueryHit struct {
	Rank      int     `json:"rank"`
	Score     float32 `json:"score"`
	FilePath  string  `json:"file_path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Snippet   string  `json:"snippet"`
}

// QueryResponse carries the hits for a query plus the confidence floor
// currently applied to them.
type QueryResponse struct {
	Query         string     `json:"query"`
	Hits          []QueryHit `json:"hits"`
	ConfidenceMin float32    `json:"confidence_min"`
}

// WithConfidenceMin re-applies a new confidence floor to the response,
// renumbering ranks contiguously from 1. It is idempotent: applying the
// same threshold twice produces the same hit set and numbering.
func (r QueryResponse) WithConfidenceMin(threshold float32) QueryResponse {
	r.ConfidenceMin = clampConfidence(threshold)
	r.Hits = filterByConfidence(r.Hits, r.ConfidenceMin)
	return r
}

func clampConfidence(threshold float32) float32 {
	if threshold < 0 {
		return 0
	}
	if threshold > 1 {
		return 1
	}
	return threshold
}

func filterByConfidence(hits []QueryHit, threshold float32) []QueryHit {
	kept := make([]QueryHit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= threshold {
			kept = append(kept, h)
		}
	}
	for i := range kept {
		kept[i].Rank = i + 1
	}
	return kept
}
