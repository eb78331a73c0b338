package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/codexlab/codexcore/internal/command"
	cxerrors "github.com/codexlab/codexcore/internal/errors"
)

// StdioServer serves the command registry as a line-delimited JSON-RPC 2.0
// stream: one request per line in, one response per line out. Method names
// are command verbs; params.args are passed through as positional args.
//
// modelcontextprotocol/go-sdk's stdio transport frames the MCP tool-call
// protocol specifically (method fixed to initialize/tools/call/notifications),
// not arbitrary verb-as-method JSON-RPC, so it cannot carry this framing
// without reimplementing the protocol layer anyway; the sdk is still used
// for actual MCP serving in internal/mcp, and is the confirmed-idiom source
// for the stdio loop shape (read line, dispatch, write line) this mirrors.
type StdioServer struct {
	registry *command.Registry
	cc       *command.Context
}

func NewStdioServer(registry *command.Registry, cc *command.Context) *StdioServer {
	return &StdioServer{registry: registry, cc: cc}
}

// Serve reads JSON-RPC requests from r and writes responses to w until r is
// exhausted or ctx is cancelled. A malformed line produces a parse-error
// response rather than terminating the stream.
func (s *StdioServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			_ = enc.Encode(JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   &JSONRPCError{Code: string(cxerrors.CodeInvalidRequest), Message: fmt.Sprintf("parse error: %v", err)},
			})
			continue
		}

		resp := s.dispatch(ctx, req)
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *StdioServer) dispatch(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}

	result, err := s.registry.Run(ctx, s.cc, req.Method, req.Params.Args)
	if err != nil {
		resp.Error = errorToRPC(err)
		return resp
	}

	switch result.Kind {
	case command.KindUnit:
		resp.Result = map[string]any{}
	case command.KindText:
		resp.Result = map[string]any{"text": result.Text}
	case command.KindJSON:
		resp.Result = result.JSON
	}
	return resp
}

func errorToRPC(err error) *JSONRPCError {
	code := cxerrors.CodeOf(err)
	if code == "" {
		return &JSONRPCError{Code: "internal_error", Message: err.Error()}
	}
	return &JSONRPCError{Code: string(code), Message: err.Error()}
}
