package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// LineWindowChunker splits file content into fixed-size, overlapping
// windows of lines. It carries no language awareness — every file, code or
// prose, is windowed identically, matching the engine's line/window model.
type LineWindowChunker struct {
	opts Options
}

// NewLineWindowChunker builds a chunker with the given options, applying
// defaults for zero values.
func NewLineWindowChunker(opts Options) *LineWindowChunker {
	return &LineWindowChunker{opts: opts.WithDefaults()}
}

var _ Chunker = (*LineWindowChunker)(nil)

// Chunk implements Chunker.
func (c *LineWindowChunker) Chunk(file FileInput) ([]Chunk, error) {
	lines := splitLines(string(file.Content))
	if len(lines) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	linesPerChunk := c.opts.LinesPerChunk
	overlap := c.opts.Overlap

	start := 0
	for start < len(lines) {
		end := start + linesPerChunk
		if end > len(lines) {
			end = len(lines)
		}

		window := lines[start:end]
		text := strings.Join(window, "\n")
		checksum := checksumFor(text)

		chunks = append(chunks, Chunk{
			FilePath:  file.Path,
			StartLine: start + 1,
			EndLine:   end,
			Checksum:  checksum,
			Text:      text,
			Snippet:   wrapSnippet(text),
		})

		if end == len(lines) {
			break
		}

		// Advance by a full window minus the requested overlap, but never
		// backwards and never by zero (an overlap >= linesPerChunk would
		// otherwise loop forever; WithDefaults already clamps it below).
		step := linesPerChunk - overlap
		if step < 1 {
			step = 1
		}
		start += step
	}

	return chunks, nil
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(content, "\n")
}

// checksumFor hashes the exact window text that will be embedded, so two
// files (or two rebuilds of the same file) sharing a window reuse its
// embedding via the builder's checksum map.
func checksumFor(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// wrapSnippet wraps text at snippetWrapWidth columns and keeps only the
// first snippetMaxLines of the result, so previews stay short regardless of
// window size.
func wrapSnippet(text string) string {
	var wrapped []string
	for _, line := range strings.Split(text, "\n") {
		wrapped = append(wrapped, wrapLine(line)...)
		if len(wrapped) >= snippetMaxLines {
			break
		}
	}
	if len(wrapped) > snippetMaxLines {
		wrapped = wrapped[:snippetMaxLines]
	}
	return strings.Join(wrapped, "\n")
}

func wrapLine(line string) []string {
	if len(line) <= snippetWrapWidth {
		return []string{line}
	}
	var out []string
	for len(line) > snippetWrapWidth {
		out = append(out, line[:snippetWrapWidth])
		line = line[snippetWrapWidth:]
	}
	if line != "" {
		out = append(out, line)
	}
	return out
}
