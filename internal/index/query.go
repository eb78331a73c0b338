package index

import (
	"context"
	"strconv"

	cxerrors "github.com/codexlab/codexcore/internal/errors"
	"github.com/codexlab/codexcore/internal/embed"
	"github.com/codexlab/codexcore/internal/paths"
	"github.com/codexlab/codexcore/internal/vectorstore"
)

// QueryOptions configures a single similarity query.
type QueryOptions struct {
	ProjectRoot   string
	Embedder      embed.Embedder
	TopK          int
	ConfidenceMin float32
}

// Querier answers similarity queries against a built index.
type Querier struct {
	layout paths.IndexLayout
}

// NewQuerier builds a Querier for a project root.
func NewQuerier(projectRoot string) *Querier {
	return &Querier{layout: paths.ForProject(projectRoot)}
}

// Query embeds the query text, searches the persisted vector graph with
// ef = max(64, 4*topK), hydrates hits from the meta log, and applies the
// requested confidence floor.
func (q *Querier) Query(ctx context.Context, text string, opts QueryOptions) (QueryResponse, error) {
	manifest, err := loadManifest(q.layout.Manifest)
	if err != nil {
		return QueryResponse{}, err
	}
	if manifest == nil {
		return QueryResponse{}, cxerrors.IndexMissing(q.layout.Manifest)
	}

	metaChunks, err := readMetaLogOrdered(q.layout.MetaLog)
	if err != nil {
		return QueryResponse{}, err
	}
	if len(metaChunks) == 0 {
		return QueryResponse{}, cxerrors.IndexEmpty()
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	queryVec, err := opts.Embedder.Embed(ctx, text)
	if err != nil {
		return QueryResponse{}, cxerrors.EmbedderUnavailable("embed query", err)
	}
	if len(queryVec) != manifest.EmbeddingDim {
		return QueryResponse{}, cxerrors.DimensionMismatch(manifest.EmbeddingDim, len(queryVec))
	}

	graph := vectorstore.NewHNSWGraph(vectorstore.DefaultConfig(manifest.EmbeddingDim, manifest.TotalChunks))
	if err := graph.Load(q.layout.Vectors); err != nil {
		return QueryResponse{}, cxerrors.GraphIOError("load graph", err)
	}
	defer graph.Close()

	results, err := graph.Search(ctx, queryVec, topK)
	if err != nil {
		return QueryResponse{}, cxerrors.GraphIOError("search graph", err)
	}

	hits := make([]QueryHit, 0, len(results))
	for i, r := range results {
		chunkID, err := strconv.Atoi(r.ID)
		if err != nil || chunkID < 0 || chunkID >= len(metaChunks) {
			continue
		}
		sc := metaChunks[chunkID]
		hits = append(hits, QueryHit{
			Rank:      i + 1,
			Score:     r.Score,
			FilePath:  sc.FilePath,
			StartLine: sc.StartLine,
			EndLine:   sc.EndLine,
			Snippet:   sc.Snippet,
		})
	}

	response := QueryResponse{Query: text, Hits: hits, ConfidenceMin: 0}
	return response.WithConfidenceMin(opts.ConfidenceMin), nil
}
