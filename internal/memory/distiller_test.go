package memory_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codexlab/codexcore/internal/embed"
	"github.com/codexlab/codexcore/internal/memory"
)

type fakeSummarizer struct {
	summary    string
	confidence float32
	err        error
}

func (f fakeSummarizer) Summarize(_ context.Context, _ string) (string, float32, error) {
	return f.summary, f.confidence, f.err
}

func TestDistillUsesExternalSummarizer(t *testing.T) {
	embedder := embed.NewStaticEmbedder()
	distiller := memory.NewDistiller(fakeSummarizer{summary: "short summary", confidence: 0.8}, embedder)

	event := memory.MemoryEvent{
		Source: memory.SourceUserMessage,
		Text:   "a very long message describing an architecture decision",
		Metadata: memory.MemoryMetadata{
			ConversationID: "conv-1",
		},
	}
	record, err := distiller.Distill(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "short summary", record.Summary)
	require.Equal(t, float32(0.8), record.Confidence)
	require.Contains(t, record.Metadata.Tags, "user")
	require.NotEmpty(t, record.Embedding)
	require.Equal(t, record.CreatedAt, record.UpdatedAt)
}

func TestDistillFallsBackOnSummarizerError(t *testing.T) {
	embedder := embed.NewStaticEmbedder()
	distiller := memory.NewDistiller(fakeSummarizer{err: errors.New("summarizer unavailable")}, embedder)

	text := strings.Repeat("word ", 200)
	event := memory.MemoryEvent{Source: memory.SourceToolOutput, Text: text}
	record, err := distiller.Distill(context.Background(), event)
	require.NoError(t, err)
	require.NotEmpty(t, record.Summary)
	require.LessOrEqual(t, len(record.Summary), 320)
	require.GreaterOrEqual(t, record.Confidence, float32(0.25))
	require.LessOrEqual(t, record.Confidence, float32(0.95))
}

func TestDistillStripsInstructionSentinels(t *testing.T) {
	embedder := embed.NewStaticEmbedder()
	distiller := memory.NewDistiller(
		fakeSummarizer{summary: "<user_instructions>do this</user_instructions>", confidence: 0.5},
		embedder,
	)
	event := memory.MemoryEvent{Source: memory.SourceSystemMessage, Text: "irrelevant"}
	record, err := distiller.Distill(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "do this", record.Summary)
}

func TestDistillNilSummarizerUsesFallback(t *testing.T) {
	embedder := embed.NewStaticEmbedder()
	distiller := memory.NewDistiller(nil, embedder)
	event := memory.MemoryEvent{Source: memory.SourceAssistantMessage, Text: "short"}
	record, err := distiller.Distill(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "short", record.Summary)
}
