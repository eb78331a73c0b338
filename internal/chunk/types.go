// Package chunk splits source files into overlapping line windows and
// produces the content-addressed Chunk records the index builder embeds
// and stores.
package chunk

// Default window parameters. Callers may override them per build.
const (
	DefaultLinesPerChunk = 120
	DefaultOverlap       = 20
	DefaultBatchSize     = 24

	snippetWrapWidth = 80
	snippetMaxLines  = 3
)

// Chunk is a window of a file's text. Its dense, build-wide chunk_id is
// assigned later by the index builder once every file's chunks are
// collected and ordered; here a chunk is only identified by its content
// checksum, which is stable across builds and drives embedding reuse.
type Chunk struct {
	FilePath  string // project-root-relative, forward-slash normalized
	StartLine int    // 1-indexed
	EndLine   int    // inclusive
	Checksum  string // sha256 of the window's joined text
	Text      string // full window text, never persisted verbatim
	Snippet   string // wrapped preview, this is what gets embedded
}

// FileInput is the unit of work handed to Chunker.Chunk.
type FileInput struct {
	Path    string
	Content []byte
}

// Chunker splits a file's content into line-window chunks.
type Chunker interface {
	Chunk(file FileInput) ([]Chunk, error)
}

// Options configures window size and overlap.
type Options struct {
	LinesPerChunk int
	Overlap       int
}

// DefaultOptions returns the engine's standard window parameters.
func DefaultOptions() Options {
	return Options{LinesPerChunk: DefaultLinesPerChunk, Overlap: DefaultOverlap}
}

// WithDefaults resolves o: the zero value becomes DefaultOptions, and
// explicit values are clamped so LinesPerChunk >= 1 and
// 0 <= Overlap < LinesPerChunk. An explicit Overlap of 0 is preserved.
func (o Options) WithDefaults() Options {
	if o == (Options{}) {
		return DefaultOptions()
	}
	if o.LinesPerChunk < 1 {
		o.LinesPerChunk = DefaultLinesPerChunk
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.LinesPerChunk {
		o.Overlap = o.LinesPerChunk - 1
	}
	return o
}
