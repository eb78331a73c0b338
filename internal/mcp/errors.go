// Package mcp implements the Model Context Protocol server for codexcore:
// it exposes the command registry as a set of MCP tools, one per
// registered verb, over github.com/modelcontextprotocol/go-sdk.
package mcp

import (
	"context"
	"errors"
	"fmt"

	cxerrors "github.com/codexlab/codexcore/internal/errors"
)

// Standard JSON-RPC error codes, plus a handful of codexcore-specific ones
// in the reserved server-error range.
const (
	ErrCodeIndexNotFound   = -32001
	ErrCodeEmbeddingFailed = -32002
	ErrCodeTimeout         = -32003
	ErrCodeAgentMismatch   = -32004
	ErrCodeInvalidRequest  = -32600
	ErrCodeMethodNotFound  = -32601
	ErrCodeInvalidParams   = -32602
	ErrCodeInternalError   = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts a codexcore error into an MCP protocol error, mapping
// by CodexError.Code where the error came from a command handler and
// falling back to context/generic cases otherwise.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var ce *cxerrors.CodexError
	if errors.As(err, &ce) {
		return mapCodexError(ce)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "request was canceled"}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}

func mapCodexError(ce *cxerrors.CodexError) *MCPError {
	message := ce.Message
	if ce.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ce.Message, ce.Suggestion)
	}

	switch ce.Code {
	case cxerrors.CodeIndexMissing, cxerrors.CodeIndexEmpty, cxerrors.CodeEmptyIndex:
		return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
	case cxerrors.CodeEmbedderUnavailable:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
	case cxerrors.CodeCancelled:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case cxerrors.CodeAgentMismatch:
		return &MCPError{Code: ErrCodeAgentMismatch, Message: message}
	case cxerrors.CodeUnknownCommand:
		return &MCPError{Code: ErrCodeMethodNotFound, Message: message}
	case cxerrors.CodeInvalidRequest:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

// NewInvalidParamsError builds an error for a malformed tool call.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}
