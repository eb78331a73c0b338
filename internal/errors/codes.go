// Package errors provides the structured error taxonomy shared by every
// codexcore subsystem: the index builder/query path, the memory store, and
// the command dispatcher. Every error that crosses a component boundary is
// a *CodexError carrying one of the Code values below, so callers can branch
// on Code rather than parsing message text.
package errors

// Category groups codes for logging and metrics breakdowns.
type Category string

const (
	CategoryRequest Category = "REQUEST"
	CategoryIndex   Category = "INDEX"
	CategoryMemory  Category = "MEMORY"
	CategoryIO      Category = "IO"
	CategoryRuntime Category = "RUNTIME"
)

// Severity mirrors how urgently the caller must react.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Code is a stable, match-on-me identifier. The string values double as the
// wire-level error codes every transport reports, so they stay lowercase.
type Code string

const (
	// CodeInvalidRequest: malformed command invocation or arguments.
	CodeInvalidRequest Code = "invalid_request"
	// CodeUnknownCommand: no handler registered for the requested verb.
	CodeUnknownCommand Code = "unknown_command"
	// CodeAgentMismatch: a request's declared agent/session does not match context.
	CodeAgentMismatch Code = "agent_mismatch"
	// CodeIndexMissing: no manifest exists at the expected index path.
	CodeIndexMissing Code = "index_missing"
	// CodeIndexEmpty: a manifest exists but the index holds no chunks.
	CodeIndexEmpty Code = "index_empty"
	// CodeEmptyIndex: a build completed but produced zero chunks.
	CodeEmptyIndex Code = "empty_index"
	// CodeDimensionMismatch: query/embedder vector width disagrees with the graph's.
	CodeDimensionMismatch Code = "dimension_mismatch"
	// CodeEmbedderUnavailable: the configured embedder failed and no fallback applied.
	CodeEmbedderUnavailable Code = "embedder_unavailable"
	// CodeGraphIOError: reading or writing the HNSW graph file failed.
	CodeGraphIOError Code = "graph_io_error"
	// CodeIOError: any other filesystem failure (manifest, meta log, lock).
	CodeIOError Code = "io_error"
	// CodeCancelled: the operation's context was cancelled or timed out.
	CodeCancelled Code = "cancelled"
)

func categoryFor(code Code) Category {
	switch code {
	case CodeInvalidRequest, CodeUnknownCommand, CodeAgentMismatch:
		return CategoryRequest
	case CodeIndexMissing, CodeIndexEmpty, CodeEmptyIndex, CodeDimensionMismatch, CodeGraphIOError:
		return CategoryIndex
	case CodeEmbedderUnavailable:
		return CategoryMemory
	case CodeIOError:
		return CategoryIO
	default:
		return CategoryRuntime
	}
}

func severityFor(code Code) Severity {
	switch code {
	case CodeIndexMissing, CodeIndexEmpty, CodeEmptyIndex, CodeGraphIOError, CodeIOError:
		return SeverityFatal
	case CodeCancelled:
		return SeverityWarning
	default:
		return SeverityError
	}
}

func retryableFor(code Code) bool {
	switch code {
	case CodeEmbedderUnavailable, CodeCancelled:
		return true
	default:
		return false
	}
}
