package index

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/codexlab/codexcore/internal/chunk"
	"github.com/codexlab/codexcore/internal/embed"
	cxerrors "github.com/codexlab/codexcore/internal/errors"
	"github.com/codexlab/codexcore/internal/paths"
	"github.com/codexlab/codexcore/internal/vectorstore"
)

// EventStage names a phase of a build, emitted to BuildOptions.OnEvent.
type EventStage string

const (
	StageStarted   EventStage = "started"
	StageProgress  EventStage = "progress"
	StageCompleted EventStage = "completed"
	StageFailed    EventStage = "failed"
)

// BuildEvent reports build progress. Started carries TotalFiles; Progress
// is emitted once per processed file; Completed carries the final Summary.
type BuildEvent struct {
	Stage           EventStage
	TotalFiles      int
	ProcessedFiles  int
	ProcessedChunks int
	CurrentPath     string
	Summary         *Summary
	Err             error
}

// Summary is the outcome of a successful build.
type Summary struct {
	TotalFiles     int    `json:"total_files"`
	TotalChunks    int    `json:"total_chunks"`
	EmbeddingModel string `json:"embedding_model"`
	EmbeddingDim   int    `json:"embedding_dim"`
	DurationMs     int64  `json:"duration_ms"`
	ReusedChunks   int    `json:"reused_chunks"`
	NewChunks      int    `json:"new_chunks"`
}

// BuildOptions configures a single index build.
type BuildOptions struct {
	ProjectRoot string
	Chunking    chunk.Options
	Chunker     chunk.Chunker // defaults to a line-window chunker over Chunking
	Embedder    embed.Embedder
	Source      FileSource
	BatchSize   int
	OnEvent     func(BuildEvent)
	LockTimeout time.Duration
}

// Builder runs CodeIndex build operations against a project's .codex/index
// directory.
type Builder struct {
	layout paths.IndexLayout
	opts   BuildOptions
}

// NewBuilder constructs a Builder for a project root, computing its index
// layout and filling option defaults.
func NewBuilder(opts BuildOptions) *Builder {
	opts.Chunking = opts.Chunking.WithDefaults()
	if opts.Chunker == nil {
		opts.Chunker = chunk.NewLineWindowChunker(opts.Chunking)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = chunk.DefaultBatchSize
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 30 * time.Second
	}
	return &Builder{
		layout: paths.ForProject(opts.ProjectRoot),
		opts:   opts,
	}
}

func (b *Builder) emit(ev BuildEvent) {
	if b.opts.OnEvent != nil {
		b.opts.OnEvent(ev)
	}
}

// Build walks the project, chunks every discovered file, reuses embeddings
// for chunks whose checksum is unchanged from the previous build, embeds
// only the new or changed chunks, and atomically persists the manifest,
// analytics, meta log and vector graph. The whole protocol runs under an
// exclusive file lock so two builds never interleave their writes.
func (b *Builder) Build(ctx context.Context) (Summary, error) {
	if err := b.layout.EnsureDirs(); err != nil {
		return Summary{}, cxerrors.IOError("create index directory", err)
	}

	lock := NewFileLock(b.layout.Lock)
	acquired, err := lock.LockWithTimeout(b.opts.LockTimeout, 100*time.Millisecond)
	if err != nil {
		return Summary{}, cxerrors.IOError("acquire build lock", err)
	}
	if !acquired {
		return Summary{}, cxerrors.New(cxerrors.CodeIOError, "another build is already in progress", nil)
	}
	defer lock.Unlock()

	started := time.Now()

	analytics, err := loadAnalytics(b.layout.Analytics)
	if err != nil {
		return Summary{}, err
	}
	analytics.recordAttempt(started)

	summary, buildErr := b.runBuild(ctx)
	duration := time.Since(started)

	if buildErr != nil {
		analytics.recordFailure(duration, buildErr)
		_ = saveAnalytics(b.layout.Analytics, *analytics)
		b.emit(BuildEvent{Stage: StageFailed, Err: buildErr})
		return Summary{}, buildErr
	}

	analytics.recordSuccess(time.Now(), duration)
	if err := saveAnalytics(b.layout.Analytics, *analytics); err != nil {
		return Summary{}, err
	}

	summary.DurationMs = duration.Milliseconds()
	b.emit(BuildEvent{Stage: StageCompleted, Summary: &summary})
	return summary, nil
}

func (b *Builder) runBuild(ctx context.Context) (Summary, error) {
	previousManifest, err := loadManifest(b.layout.Manifest)
	if err != nil {
		return Summary{}, err
	}
	previousChunks, err := readMetaLogByChecksum(b.layout.MetaLog)
	if err != nil {
		return Summary{}, err
	}

	walked, err := b.opts.Source.Walk(ctx, b.opts.ProjectRoot)
	if err != nil {
		return Summary{}, cxerrors.IOError("walk project", err)
	}
	var files []WalkedFile
	for wf := range walked {
		if wf.Err != nil {
			continue
		}
		files = append(files, wf)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	b.emit(BuildEvent{Stage: StageStarted, TotalFiles: len(files)})

	var allChunks []chunk.Chunk
	for i, wf := range files {
		select {
		case <-ctx.Done():
			return Summary{}, cxerrors.Cancelled(ctx.Err())
		default:
		}
		content, err := os.ReadFile(wf.AbsPath)
		if err != nil {
			continue
		}
		chunks, err := b.opts.Chunker.Chunk(chunk.FileInput{Path: wf.Path, Content: content})
		if err != nil {
			continue
		}
		allChunks = append(allChunks, chunks...)
		b.emit(BuildEvent{
			Stage:           StageProgress,
			TotalFiles:      len(files),
			ProcessedFiles:  i + 1,
			ProcessedChunks: len(allChunks),
			CurrentPath:     wf.Path,
		})
	}
	sort.Slice(allChunks, func(i, j int) bool {
		if allChunks[i].FilePath != allChunks[j].FilePath {
			return allChunks[i].FilePath < allChunks[j].FilePath
		}
		return allChunks[i].StartLine < allChunks[j].StartLine
	})

	if len(allChunks) == 0 {
		return Summary{}, cxerrors.EmptyIndex()
	}

	now := time.Now()
	stored := make([]StoredChunk, len(allChunks))
	var toEmbedIdx []int
	reused := 0
	for i, c := range allChunks {
		prev, hasPrev := previousChunks[c.Checksum]
		createdAt := now
		if hasPrev {
			createdAt = prev.CreatedAt
		}
		stored[i] = StoredChunk{
			ChunkID:   i,
			FilePath:  c.FilePath,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Checksum:  c.Checksum,
			Snippet:   c.Snippet,
			CreatedAt: createdAt,
			UpdatedAt: now,
		}
		if hasPrev && len(prev.Embedding) > 0 {
			stored[i].Embedding = prev.Embedding
			reused++
		} else {
			toEmbedIdx = append(toEmbedIdx, i)
		}
	}

	if err := b.embedMissing(ctx, allChunks, stored, toEmbedIdx); err != nil {
		return Summary{}, err
	}

	// Every record, reused or fresh, must agree on the embedding width the
	// first one established. A mismatch means the model changed under us.
	embeddingDim := len(stored[0].Embedding)
	if embeddingDim == 0 {
		return Summary{}, cxerrors.New(cxerrors.CodeDimensionMismatch, "embedding dimension is zero", nil)
	}
	for _, sc := range stored {
		if len(sc.Embedding) != embeddingDim {
			return Summary{}, cxerrors.DimensionMismatch(embeddingDim, len(sc.Embedding))
		}
	}

	graph := vectorstore.NewHNSWGraph(vectorstore.DefaultConfig(embeddingDim, len(stored)))
	ids := make([]string, len(stored))
	vectors := make([][]float32, len(stored))
	for i, sc := range stored {
		ids[i] = strconv.Itoa(sc.ChunkID)
		vectors[i] = sc.Embedding
	}
	if err := graph.Add(ctx, ids, vectors); err != nil {
		return Summary{}, cxerrors.GraphIOError("add vectors", err)
	}
	if err := graph.Save(b.layout.Vectors); err != nil {
		return Summary{}, cxerrors.GraphIOError("save graph", err)
	}

	if err := writeMetaLog(b.layout.MetaLog, stored); err != nil {
		return Summary{}, err
	}

	createdAt := now
	if previousManifest != nil {
		createdAt = previousManifest.CreatedAt
	}
	manifest := Manifest{
		Version:        ManifestVersion,
		EmbeddingModel: b.opts.Embedder.ModelName(),
		EmbeddingDim:   embeddingDim,
		CreatedAt:      createdAt,
		UpdatedAt:      now,
		TotalFiles:     len(files),
		TotalChunks:    len(stored),
		LinesPerChunk:  b.opts.Chunking.LinesPerChunk,
		Overlap:        b.opts.Chunking.Overlap,
	}
	if err := saveManifest(b.layout.Manifest, manifest); err != nil {
		return Summary{}, err
	}

	return Summary{
		TotalFiles:     len(files),
		TotalChunks:    len(stored),
		EmbeddingModel: manifest.EmbeddingModel,
		EmbeddingDim:   embeddingDim,
		ReusedChunks:   reused,
		NewChunks:      len(stored) - reused,
	}, nil
}

// embedMissing splits idx into BatchSize-sized batches and embeds them
// concurrently, bounded by a worker count matching the scanner's
// runtime.NumCPU() sizing. Batches write to disjoint stored[ci] slots, so
// the only shared state is the first error, guarded by errMu.
func (b *Builder) embedMissing(ctx context.Context, chunks []chunk.Chunk, stored []StoredChunk, idx []int) error {
	batchSize := b.opts.BatchSize

	var batches [][]int
	for start := 0; start < len(idx); start += batchSize {
		end := start + batchSize
		if end > len(idx) {
			end = len(idx)
		}
		batches = append(batches, idx[start:end])
	}
	if len(batches) == 0 {
		return nil
	}

	workers := runtime.NumCPU()
	if workers > len(batches) {
		workers = len(batches)
	}
	sem := make(chan struct{}, workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error

	for _, batchIdx := range batches {
		if ctx.Err() != nil {
			break
		}

		batchIdx := batchIdx
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			texts := make([]string, len(batchIdx))
			for i, ci := range batchIdx {
				texts[i] = chunks[ci].Snippet
			}

			vectors, err := b.opts.Embedder.EmbedBatch(ctx, texts)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = cxerrors.EmbedderUnavailable(fmt.Sprintf("embed batch of %d chunks", len(texts)), err)
					cancel()
				}
				errMu.Unlock()
				return
			}
			if len(vectors) != len(batchIdx) {
				errMu.Lock()
				if firstErr == nil {
					firstErr = cxerrors.EmbedderUnavailable("embedder returned mismatched batch size", nil)
					cancel()
				}
				errMu.Unlock()
				return
			}
			for i, ci := range batchIdx {
				stored[ci].Embedding = vectors[i]
			}
		}()
	}

	wg.Wait()
	return firstErr
}
