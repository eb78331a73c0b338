package memory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/codexlab/codexcore/internal/embed"
)

const (
	fallbackWrapWidth  = 96
	fallbackMaxLines   = 3
	fallbackMaxChars   = 320
	fallbackMinConf    = 0.25
	fallbackMaxConf    = 0.95
)

// Summarizer produces a short summary and confidence score for a block of
// text. An external, model-backed implementation is expected in production;
// Distiller falls back to a deterministic text clamp when none is
// available or the call fails.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (summary string, confidence float32, err error)
}

// Distiller turns MemoryEvents into MemoryRecords: summarize, clean, embed,
// tag, timestamp.
type Distiller struct {
	summarizer Summarizer
	embedder   embed.Embedder
}

// NewDistiller builds a Distiller. summarizer may be nil, in which case
// every event falls back to the text-clamp summary.
func NewDistiller(summarizer Summarizer, embedder embed.Embedder) *Distiller {
	return &Distiller{summarizer: summarizer, embedder: embedder}
}

// Distill produces a MemoryRecord for a single event.
func (d *Distiller) Distill(ctx context.Context, event MemoryEvent) (MemoryRecord, error) {
	summary, confidence := d.summarize(ctx, event.Text)
	summary = CleanSummary(summary)

	vector, err := d.embedder.Embed(ctx, summary)
	if err != nil {
		return MemoryRecord{}, err
	}

	return recordFromEvent(event, summary, vector, confidence), nil
}

func (d *Distiller) summarize(ctx context.Context, text string) (string, float32) {
	if d.summarizer != nil {
		summary, confidence, err := d.summarizer.Summarize(ctx, text)
		if err == nil {
			return summary, clampConfidenceRange(confidence)
		}
		slog.Warn("summarizer_fallback",
			slog.String("reason", "summarizer call failed"),
			slog.String("error", err.Error()))
	} else {
		slog.Debug("summarizer_fallback", slog.String("reason", "no summarizer configured"))
	}
	return fallbackSummarize(text)
}

// fallbackSummarize clamps text to the first three width-96-wrapped lines,
// space-joined and capped at 320 characters, with confidence scaled by how
// much of the original text survived the clamp.
func fallbackSummarize(text string) (string, float32) {
	lines := wrapFallback(text)
	if len(lines) > fallbackMaxLines {
		lines = lines[:fallbackMaxLines]
	}
	summary := strings.Join(lines, " ")
	if len(summary) > fallbackMaxChars {
		summary = summary[:fallbackMaxChars]
	}

	var confidence float32
	if len(text) > 0 {
		confidence = float32(len(summary)) / float32(len(text))
	}
	return summary, clampConfidenceRange(confidence)
}

func wrapFallback(text string) []string {
	var wrapped []string
	for _, line := range strings.Split(text, "\n") {
		wrapped = append(wrapped, wrapFallbackLine(line)...)
		if len(wrapped) >= fallbackMaxLines {
			break
		}
	}
	return wrapped
}

func wrapFallbackLine(line string) []string {
	if len(line) <= fallbackWrapWidth {
		return []string{line}
	}
	var out []string
	for len(line) > fallbackWrapWidth {
		out = append(out, line[:fallbackWrapWidth])
		line = line[fallbackWrapWidth:]
	}
	if line != "" {
		out = append(out, line)
	}
	return out
}

func clampConfidenceRange(c float32) float32 {
	if c < fallbackMinConf {
		return fallbackMinConf
	}
	if c > fallbackMaxConf {
		return fallbackMaxConf
	}
	return c
}
