// Package memory implements the long-term memory engine: capturing
// conversational events, distilling them into confidence-scored records,
// persisting them alongside a vector graph, and serving confidence-filtered
// retrieval.
package memory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MemorySource names where a MemoryEvent or MemoryRecord originated.
type MemorySource string

const (
	SourceUserMessage      MemorySource = "user_message"
	SourceAssistantMessage MemorySource = "assistant_message"
	SourceToolOutput       MemorySource = "tool_output"
	SourceFileDiff         MemorySource = "file_diff"
	SourceSystemMessage    MemorySource = "system_message"
)

// tag is the short form appended to a distilled record's metadata tags.
func (s MemorySource) tag() string {
	switch s {
	case SourceUserMessage:
		return "user"
	case SourceAssistantMessage:
		return "assistant"
	case SourceToolOutput:
		return "tool"
	case SourceFileDiff:
		return "file_diff"
	case SourceSystemMessage:
		return "system"
	default:
		return string(s)
	}
}

// MemoryMetadata is an extensible bag of origin metadata carried from a
// MemoryEvent through to its distilled MemoryRecord.
type MemoryMetadata struct {
	ConversationID string   `json:"conversation_id,omitempty"`
	SessionSource  string   `json:"session_source,omitempty"`
	Role           string   `json:"role,omitempty"`
	ToolName       string   `json:"tool_name,omitempty"`
	CallID         string   `json:"call_id,omitempty"`
	FilePath       string   `json:"file_path,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

func (m MemoryMetadata) clone() MemoryMetadata {
	out := m
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	return out
}

// MemoryEvent is an atomic capture awaiting distillation.
type MemoryEvent struct {
	EventID   uuid.UUID      `json:"event_id"`
	Source    MemorySource   `json:"source"`
	Text      string         `json:"text"`
	Metadata  MemoryMetadata `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
}

func newEvent(source MemorySource, text string, metadata MemoryMetadata) MemoryEvent {
	return MemoryEvent{
		EventID:   uuid.Must(uuid.NewV7()),
		Source:    source,
		Text:      text,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}
}

// MemoryRecord is a distilled, indexed memory unit.
type MemoryRecord struct {
	RecordID          uuid.UUID      `json:"record_id"`
	Summary           string         `json:"summary"`
	Embedding         []float32      `json:"embedding"`
	Metadata          MemoryMetadata `json:"metadata"`
	Confidence        float32        `json:"confidence"`
	Source            MemorySource   `json:"source"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	ToolLastFetchedAt *time.Time     `json:"tool_last_fetched_at,omitempty"`
}

// NewMemoryRecord assembles a MemoryRecord with a fresh time-ordered id and
// both timestamps set to now.
func NewMemoryRecord(summary string, embedding []float32, metadata MemoryMetadata, confidence float32, source MemorySource) MemoryRecord {
	now := time.Now()
	return MemoryRecord{
		RecordID:   uuid.Must(uuid.NewV7()),
		Summary:    summary,
		Embedding:  embedding,
		Metadata:   metadata,
		Confidence: confidence,
		Source:     source,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// recordFromEvent builds the record for an event already distilled into a
// summary, embedding, and confidence, tagging the metadata with the event's
// source kind.
func recordFromEvent(event MemoryEvent, summary string, embedding []float32, confidence float32) MemoryRecord {
	metadata := event.Metadata.clone()
	metadata.Tags = append(metadata.Tags, event.Source.tag())
	return NewMemoryRecord(summary, embedding, metadata, confidence, event.Source)
}

// PreviewMode gates whether a retrieval candidate is surfaced to the user
// for confirmation (manual) or auto-selected (auto).
type PreviewMode string

const (
	PreviewManual PreviewMode = "manual"
	PreviewAuto   PreviewMode = "auto"
)

// RequiresUserConfirmation reports whether this mode holds candidates for
// the user to choose from rather than auto-selecting one.
func (m PreviewMode) RequiresUserConfirmation() bool {
	return m == PreviewManual
}

// MemorySettings are the user-controlled gates on memory capture and
// retrieval.
type MemorySettings struct {
	Enabled               bool        `json:"enabled"`
	MinConfidence         float32     `json:"min_confidence"`
	PreviewMode           PreviewMode `json:"preview_mode"`
	MaxTokens             int         `json:"max_tokens"`
	RetentionDays         int         `json:"retention_days"`
	PreferPullSuggestions bool        `json:"prefer_pull_suggestions"`
}

// DefaultSettings returns the shipped defaults: memory on, a conservative
// 0.75 confidence floor, manual preview, a 400-token budget, 30-day
// retention, and a preference for pull-style suggestions over push.
func DefaultSettings() MemorySettings {
	return MemorySettings{
		Enabled:               true,
		MinConfidence:         0.75,
		PreviewMode:           PreviewManual,
		MaxTokens:             400,
		RetentionDays:         30,
		PreferPullSuggestions: true,
	}
}

// MemoryHit pairs a retrieval score with the record it matched.
type MemoryHit struct {
	Score  float32      `json:"score"`
	Record MemoryRecord `json:"record"`
}

// MemoryMetrics accumulates saturating counters across the life of a store.
type MemoryMetrics struct {
	Hits               uint64     `json:"hits"`
	Misses             uint64     `json:"misses"`
	PreviewAccepted    uint64     `json:"preview_accepted"`
	PreviewSkipped     uint64     `json:"preview_skipped"`
	SuggestInvocations uint64     `json:"suggest_invocations"`
	LastResetAt        *time.Time `json:"last_reset_at,omitempty"`
}

func (m *MemoryMetrics) recordHit()               { m.Hits = saturatingAdd(m.Hits) }
func (m *MemoryMetrics) recordMiss()               { m.Misses = saturatingAdd(m.Misses) }
func (m *MemoryMetrics) recordSuggestInvocation()  { m.SuggestInvocations = saturatingAdd(m.SuggestInvocations) }
func (m *MemoryMetrics) recordPreviewAccept()      { m.PreviewAccepted = saturatingAdd(m.PreviewAccepted) }
func (m *MemoryMetrics) recordPreviewSkip()        { m.PreviewSkipped = saturatingAdd(m.PreviewSkipped) }

func saturatingAdd(v uint64) uint64 {
	if v == ^uint64(0) {
		return v
	}
	return v + 1
}

// CleanSummary strips the reserved instruction-tag sentinels a distilled
// summary must never carry, then trims surrounding whitespace.
func CleanSummary(raw string) string {
	cleaned := strings.ReplaceAll(raw, "<user_instructions>", "")
	cleaned = strings.ReplaceAll(cleaned, "</user_instructions>", "")
	return strings.TrimSpace(cleaned)
}
