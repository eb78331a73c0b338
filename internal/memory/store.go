package memory

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/google/uuid"

	cxerrors "github.com/codexlab/codexcore/internal/errors"
	"github.com/codexlab/codexcore/internal/paths"
	"github.com/codexlab/codexcore/internal/vectorstore"
)

// Store is the append-only MemoryRecord log plus its derived vector graph.
// The graph is rebuilt on every mutation rather than incrementally updated;
// acceptable because the target scale is at most on the order of 10^5
// records (see DESIGN.md).
type Store struct {
	layout paths.MemoryLayout

	mu      sync.Mutex
	records []MemoryRecord
	graph   vectorstore.Graph
	metrics MemoryMetrics
}

// OpenStore loads the manifest and metrics at layout's paths and rebuilds
// the vector graph if any records exist.
func OpenStore(layout paths.MemoryLayout) (*Store, error) {
	if err := layout.EnsureDirs(); err != nil {
		return nil, cxerrors.IOError("create memory directory", err)
	}

	records, err := readManifestJSONL(layout.Manifest)
	if err != nil {
		return nil, err
	}
	metrics, err := loadMetrics(layout.Metrics)
	if err != nil {
		return nil, err
	}

	store := &Store{layout: layout, records: records, metrics: *metrics}
	if len(records) > 0 {
		graph, err := store.buildGraph(records)
		if err != nil {
			return nil, err
		}
		store.graph = graph
	}
	return store, nil
}

// RecordCount returns the number of records currently held.
func (s *Store) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Append persists record to the manifest, adds it to the in-memory set, and
// rebuilds the vector graph.
func (s *Store) Append(record MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := appendManifestLine(s.layout.Manifest, record); err != nil {
		return err
	}
	s.records = append(s.records, record)
	return s.rebuildGraphLocked()
}

// Update replaces the record matching the given id and rewrites the
// manifest atomically, rebuilding the graph. Returns an
// invalid_request-coded error if no record matches.
func (s *Store) Update(id uuid.UUID, updated MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.records {
		if s.records[i].RecordID == id {
			s.records[i] = updated
			found = true
			break
		}
	}
	if !found {
		return cxerrors.New(cxerrors.CodeInvalidRequest, "no memory record with that id", nil)
	}
	if err := rewriteManifest(s.layout.Manifest, s.records); err != nil {
		return err
	}
	return s.rebuildGraphLocked()
}

// Delete removes the record with the given id, rewrites the manifest, and
// rebuilds the graph.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]MemoryRecord, 0, len(s.records))
	for _, r := range s.records {
		if r.RecordID != id {
			kept = append(kept, r)
		}
	}
	s.records = kept
	if err := rewriteManifest(s.layout.Manifest, s.records); err != nil {
		return err
	}
	return s.rebuildGraphLocked()
}

// Query searches the vector graph for the topK nearest records to
// embedding. An empty store returns an empty slice, never an error.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int) ([]MemoryHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 || s.graph == nil {
		return nil, nil
	}

	results, err := s.graph.Search(ctx, embedding, topK)
	if err != nil {
		return nil, cxerrors.GraphIOError("search memory graph", err)
	}

	byID := make(map[string]MemoryRecord, len(s.records))
	for _, r := range s.records {
		byID[r.RecordID.String()] = r
	}

	hits := make([]MemoryHit, 0, len(results))
	for _, res := range results {
		record, ok := byID[res.ID]
		if !ok {
			continue
		}
		hits = append(hits, MemoryHit{Score: res.Score, Record: record})
	}
	return hits, nil
}

// FetchByIDs returns the records matching the given ids, in the order
// given; ids with no matching record are skipped.
func (s *Store) FetchByIDs(ids []uuid.UUID) []MemoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[uuid.UUID]MemoryRecord, len(s.records))
	for _, r := range s.records {
		byID[r.RecordID] = r
	}
	out := make([]MemoryRecord, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) buildGraph(records []MemoryRecord) (vectorstore.Graph, error) {
	if len(records) == 0 {
		return nil, nil
	}
	dimensions := len(records[0].Embedding)
	graph := vectorstore.NewHNSWGraph(vectorstore.DefaultConfig(dimensions, len(records)))

	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	for i, r := range records {
		ids[i] = r.RecordID.String()
		vectors[i] = r.Embedding
	}
	if err := graph.Add(context.Background(), ids, vectors); err != nil {
		return nil, cxerrors.GraphIOError("add memory vectors", err)
	}
	if err := graph.Save(s.layout.Graph); err != nil {
		return nil, cxerrors.GraphIOError("save memory graph", err)
	}
	return graph, nil
}

func (s *Store) rebuildGraphLocked() error {
	if len(s.records) == 0 {
		s.graph = nil
		return nil
	}
	graph, err := s.buildGraph(s.records)
	if err != nil {
		return err
	}
	s.graph = graph
	return nil
}

// --- metrics ---

func (s *Store) RecordHit() error              { return s.mutateMetrics((*MemoryMetrics).recordHit) }
func (s *Store) RecordMiss() error             { return s.mutateMetrics((*MemoryMetrics).recordMiss) }
func (s *Store) RecordSuggestInvocation() error { return s.mutateMetrics((*MemoryMetrics).recordSuggestInvocation) }
func (s *Store) RecordPreviewAccept() error     { return s.mutateMetrics((*MemoryMetrics).recordPreviewAccept) }
func (s *Store) RecordPreviewSkip() error       { return s.mutateMetrics((*MemoryMetrics).recordPreviewSkip) }

func (s *Store) Metrics() MemoryMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *Store) mutateMetrics(mutate func(*MemoryMetrics)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.metrics)
	return writeJSONAtomic(s.layout.Metrics, s.metrics)
}

func loadMetrics(path string) (*MemoryMetrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &MemoryMetrics{}, nil
		}
		return nil, cxerrors.IOError("read memory metrics", err)
	}
	var m MemoryMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, cxerrors.IOError("parse memory metrics", err)
	}
	return &m, nil
}
