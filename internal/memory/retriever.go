package memory

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/codexlab/codexcore/internal/embed"
)

const defaultMaxResults = 5

// Retriever answers memory queries by embedding text (or accepting a
// pre-computed embedding), querying the Store, and applying the
// confidence/preview policy from MemorySettings.
type Retriever struct {
	store    *Store
	settings *SettingsManager
	embedder embed.Embedder
}

// NewRetriever builds a Retriever over a store, its settings manager, and
// the embedder shared with the distiller.
func NewRetriever(store *Store, settings *SettingsManager, embedder embed.Embedder) *Retriever {
	return &Retriever{store: store, settings: settings, embedder: embedder}
}

// RetrieveForText embeds query text and delegates to RetrieveForEmbedding.
// Disabled settings or empty text never fail the caller; they return an
// empty retrieval bound to the current settings, same as an embedder
// failure logged and swallowed.
func (r *Retriever) RetrieveForText(ctx context.Context, text string, maxResults *int) (Retrieval, error) {
	query := strings.TrimSpace(text)
	settings := r.settings.Get()
	if !settings.Enabled || query == "" {
		return Retrieval{Settings: settings}, nil
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		// Retrieval must never fail a turn; log and surface nothing.
		slog.Warn("memory_retrieval_skipped", slog.String("error", err.Error()))
		return Retrieval{Settings: settings}, nil
	}

	return r.retrieveWithEmbedding(ctx, settings, vector, maxResults)
}

// RetrieveForEmbedding queries with a pre-computed embedding, skipping the
// embedder entirely.
func (r *Retriever) RetrieveForEmbedding(ctx context.Context, embedding []float32, maxResults *int) (Retrieval, error) {
	settings := r.settings.Get()
	if !settings.Enabled || len(embedding) == 0 {
		return Retrieval{Settings: settings}, nil
	}
	return r.retrieveWithEmbedding(ctx, settings, embedding, maxResults)
}

// RecordPreviewOutcome updates the preview_accepted/preview_skipped
// counters depending on whether the user accepted the suggested memory.
func (r *Retriever) RecordPreviewOutcome(accepted bool) error {
	if accepted {
		return r.store.RecordPreviewAccept()
	}
	return r.store.RecordPreviewSkip()
}

func (r *Retriever) retrieveWithEmbedding(ctx context.Context, settings MemorySettings, embedding []float32, maxResults *int) (Retrieval, error) {
	limit := defaultMaxResults
	if maxResults != nil {
		limit = *maxResults
	}

	hits, err := r.store.Query(ctx, embedding, limit)
	if err != nil {
		return Retrieval{}, err
	}

	filtered := make([]MemoryHit, 0, len(hits))
	for _, hit := range hits {
		if hit.Record.Confidence >= settings.MinConfidence {
			filtered = append(filtered, hit)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})

	if err := r.store.RecordSuggestInvocation(); err != nil {
		return Retrieval{}, err
	}
	if len(filtered) == 0 {
		if err := r.store.RecordMiss(); err != nil {
			return Retrieval{}, err
		}
	} else if err := r.store.RecordHit(); err != nil {
		return Retrieval{}, err
	}

	return Retrieval{Settings: settings, Candidates: filtered}, nil
}

// Retrieval is the result of a memory query: the settings it was evaluated
// under plus the confidence-filtered, score-sorted candidates.
type Retrieval struct {
	Settings   MemorySettings
	Candidates []MemoryHit
}

// HasCandidates reports whether any candidate survived filtering.
func (r Retrieval) HasCandidates() bool {
	return len(r.Candidates) > 0
}

// AutoSelected returns the single candidate to surface automatically, or
// none under manual preview mode (where the caller is expected to present
// the full candidate list for the user to choose from).
func (r Retrieval) AutoSelected() []MemoryHit {
	if !r.HasCandidates() {
		return nil
	}
	if r.Settings.PreviewMode.RequiresUserConfirmation() {
		return nil
	}

	best := r.Candidates[0]
	for _, c := range r.Candidates[1:] {
		if c.Record.Confidence > best.Record.Confidence ||
			(c.Record.Confidence == best.Record.Confidence && c.Score > best.Score) {
			best = c
		}
	}
	return []MemoryHit{best}
}

// PreviewMode returns the preview mode this retrieval was evaluated under.
func (r Retrieval) PreviewMode() PreviewMode {
	return r.Settings.PreviewMode
}
