package chunk_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codexlab/codexcore/internal/chunk"
)

func makeLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "line " + strconv.Itoa(i+1)
	}
	return strings.Join(lines, "\n")
}

func TestChunkCoversEveryLine(t *testing.T) {
	c := chunk.NewLineWindowChunker(chunk.Options{LinesPerChunk: 10, Overlap: 2})
	chunks, err := c.Chunk(chunk.FileInput{Path: "f.go", Content: []byte(makeLines(25))})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	covered := make(map[int]bool)
	for _, ck := range chunks {
		for line := ck.StartLine; line <= ck.EndLine; line++ {
			covered[line] = true
		}
	}
	for i := 1; i <= 25; i++ {
		assert.True(t, covered[i], "line %d not covered", i)
	}
	assert.Equal(t, 25, chunks[len(chunks)-1].EndLine)
}

func TestChunkDeterministicChecksum(t *testing.T) {
	c := chunk.NewLineWindowChunker(chunk.Options{})
	content := []byte(makeLines(50))

	first, err := c.Chunk(chunk.FileInput{Path: "a.go", Content: content})
	require.NoError(t, err)
	second, err := c.Chunk(chunk.FileInput{Path: "a.go", Content: content})
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Checksum, second[i].Checksum)
	}
}

func TestChunkEmptyFileYieldsNoChunks(t *testing.T) {
	c := chunk.NewLineWindowChunker(chunk.Options{})
	chunks, err := c.Chunk(chunk.FileInput{Path: "empty.go", Content: []byte("")})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSnippetWrappedAndTruncated(t *testing.T) {
	c := chunk.NewLineWindowChunker(chunk.Options{LinesPerChunk: 120, Overlap: 0})
	longLine := strings.Repeat("x", 200)
	content := strings.Join([]string{longLine, "second", "third", "fourth"}, "\n")
	chunks, err := c.Chunk(chunk.FileInput{Path: "f.go", Content: []byte(content)})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	snippetLines := strings.Split(chunks[0].Snippet, "\n")
	assert.LessOrEqual(t, len(snippetLines), 3)
	for _, l := range snippetLines {
		assert.LessOrEqual(t, len(l), 80)
	}
}

func TestOverlapSharesLinesBetweenWindows(t *testing.T) {
	c := chunk.NewLineWindowChunker(chunk.Options{LinesPerChunk: 10, Overlap: 4})
	chunks, err := c.Chunk(chunk.FileInput{Path: "f.go", Content: []byte(makeLines(30))})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	assert.Less(t, chunks[1].StartLine, chunks[0].EndLine+1)
}
