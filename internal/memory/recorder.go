package memory

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// InboundItem is the sum type of conversational items the recorder knows
// how to translate into a MemoryEvent. Concrete variants are unexported to
// the interface but exported themselves so callers can construct them.
type InboundItem interface {
	isInboundItem()
}

// MessageItem is a chat message; Content is the already-concatenated text
// of its parts (callers are responsible for flattening multi-part content,
// mirroring the text-only capture this engine performs).
type MessageItem struct {
	Role    string
	Content string
}

func (MessageItem) isInboundItem() {}

// FunctionCallOutputItem is the result of a tool/function call.
type FunctionCallOutputItem struct {
	CallID  string
	Content string
	Success *bool
}

func (FunctionCallOutputItem) isInboundItem() {}

// CustomToolCallOutputItem is a custom tool's raw output, recorded verbatim.
type CustomToolCallOutputItem struct {
	CallID string
	Output string
}

func (CustomToolCallOutputItem) isInboundItem() {}

// LocalShellCallItem is a local shell command invocation and its status.
type LocalShellCallItem struct {
	Command []string
	Status  string
	User    string
}

func (LocalShellCallItem) isInboundItem() {}

// WebSearchCallItem records that a web search tool call happened.
type WebSearchCallItem struct {
	Action string
}

func (WebSearchCallItem) isInboundItem() {}

// RecorderConfig configures a Recorder. A nil Sink disables publication
// entirely (Recorder becomes a no-op, matching Disabled below).
type RecorderConfig struct {
	ConversationID string
	SessionSource  string
	Sink           chan<- MemoryEvent
}

// Recorder translates inbound conversational items into MemoryEvents and
// publishes them onto a sink channel. Publication never blocks a turn: if
// the sink is absent, full, or the caller never set one up, the event is
// dropped rather than propagating an error.
type Recorder struct {
	conversationID string
	sessionSource  string
	sink           chan<- MemoryEvent
}

// NewRecorder builds a Recorder from config.
func NewRecorder(config RecorderConfig) *Recorder {
	return &Recorder{
		conversationID: config.ConversationID,
		sessionSource:  config.SessionSource,
		sink:           config.Sink,
	}
}

// Disabled builds a Recorder with no sink: every recorded item is dropped.
func Disabled(conversationID string) *Recorder {
	return NewRecorder(RecorderConfig{ConversationID: conversationID})
}

// RecordItems translates and publishes an event for every item that maps to
// one; items with no memory-worthy translation are silently skipped.
func (r *Recorder) RecordItems(items []InboundItem) {
	for _, item := range items {
		if event, ok := r.eventForItem(item); ok {
			r.publish(event)
		}
	}
}

// RecordFileDiff publishes a FileDiff event for a unified diff, unless the
// diff is whitespace-only.
func (r *Recorder) RecordFileDiff(callID, unifiedDiff string) {
	if strings.TrimSpace(unifiedDiff) == "" {
		return
	}
	metadata := MemoryMetadata{
		ConversationID: r.conversationID,
		CallID:         callID,
		Tags:           []string{"file_diff"},
	}
	r.publish(newEvent(SourceFileDiff, unifiedDiff, metadata))
}

func (r *Recorder) eventForItem(item InboundItem) (MemoryEvent, bool) {
	switch v := item.(type) {
	case MessageItem:
		metadata := MemoryMetadata{ConversationID: r.conversationID, Role: v.Role}
		return newEvent(classifyRole(v.Role), v.Content, metadata), true

	case FunctionCallOutputItem:
		text := v.Content
		if v.Success != nil && !*v.Success {
			text = "tool call failed: " + text
		}
		metadata := MemoryMetadata{
			ConversationID: r.conversationID,
			CallID:         v.CallID,
			Tags:           []string{"tool"},
		}
		return newEvent(SourceToolOutput, text, metadata), true

	case CustomToolCallOutputItem:
		metadata := MemoryMetadata{
			ConversationID: r.conversationID,
			CallID:         v.CallID,
			Tags:           []string{"tool"},
		}
		return newEvent(SourceToolOutput, v.Output, metadata), true

	case LocalShellCallItem:
		metadata := MemoryMetadata{ConversationID: r.conversationID, ToolName: "shell"}
		text := fmt.Sprintf("Shell command `%s` reported status %s", shellCommandPreview(v.Command), v.Status)
		if v.User != "" {
			text += fmt.Sprintf(" (user: %s)", v.User)
		}
		return newEvent(SourceToolOutput, text, metadata), true

	case WebSearchCallItem:
		metadata := MemoryMetadata{ConversationID: r.conversationID, ToolName: "web_search"}
		text := fmt.Sprintf("Triggered web search: %s", v.Action)
		return newEvent(SourceToolOutput, text, metadata), true

	default:
		return MemoryEvent{}, false
	}
}

// publish decorates an event with recorder-level defaults and pushes it
// onto the sink. A full or absent sink drops the event; this is the
// recorder's entire failure-handling policy.
func (r *Recorder) publish(event MemoryEvent) {
	if event.Metadata.ConversationID == "" {
		event.Metadata.ConversationID = r.conversationID
	}
	if event.Metadata.SessionSource == "" {
		event.Metadata.SessionSource = r.sessionSource
	}
	if r.sink == nil {
		return
	}
	select {
	case r.sink <- event:
	default:
	}
}

func classifyRole(role string) MemorySource {
	switch role {
	case "user":
		return SourceUserMessage
	case "assistant":
		return SourceAssistantMessage
	default:
		return SourceSystemMessage
	}
}

func shellCommandPreview(command []string) string {
	if len(command) == 0 {
		return ""
	}
	parts := make([]string, len(command))
	for i, c := range command {
		if strings.ContainsFunc(c, unicode.IsSpace) {
			parts[i] = strconv.Quote(c)
		} else {
			parts[i] = c
		}
	}
	return strings.Join(parts, " ")
}
