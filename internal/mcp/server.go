package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codexlab/codexcore/internal/command"
	"github.com/codexlab/codexcore/internal/index"
	"github.com/codexlab/codexcore/pkg/version"
)

// Server bridges AI clients (Claude Code, Cursor) to the command registry:
// every registered verb becomes an MCP tool taking the same positional args
// its CLI/stdio counterpart would.
type Server struct {
	mcp      *mcp.Server
	registry *command.Registry
	cc       *command.Context
	logger   *slog.Logger
}

// NewServer builds an MCP server exposing every verb currently registered
// on registry as a tool. Tools registered on registry after NewServer runs
// are not picked up; call NewServer after RegisterDefaults (and any
// additional registrations) have completed.
func NewServer(registry *command.Registry, cc *command.Context) *Server {
	s := &Server{
		registry: registry,
		cc:       cc,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "codexcore",
		Version: version.Version,
	}, nil)

	s.registerTools()

	return s
}

// MCPServer returns the underlying go-sdk server instance.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// registerTools wires one MCP tool per registered command verb, using its
// descriptor summary (if any) as the tool description.
func (s *Server) registerTools() {
	names := s.registry.Names()
	s.logger.Debug("registering MCP tools", slog.Int("count", len(names)))

	for _, name := range names {
		name := name
		description := name
		if descriptor, ok := s.registry.Describe(name); ok && descriptor.Summary != "" {
			description = descriptor.Summary
		}

		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        name,
			Description: description,
		}, s.invokeHandler(name))

		s.logger.Debug("registered MCP tool", slog.String("name", name))
	}
}

// invokeHandler returns the go-sdk tool handler for one command verb. It
// runs the verb through the registry and renders the CommandResult into
// InvokeOutput: JSON results that happen to be a query response also get a
// markdown rendering in Text, for clients that display text over structured
// content.
func (s *Server) invokeHandler(name string) func(context.Context, *mcp.CallToolRequest, InvokeInput) (*mcp.CallToolResult, InvokeOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input InvokeInput) (*mcp.CallToolResult, InvokeOutput, error) {
		result, err := s.registry.Run(ctx, s.cc, name, input.Args)
		if err != nil {
			return nil, InvokeOutput{}, MapError(err)
		}

		output := InvokeOutput{Kind: string(result.Kind)}
		switch result.Kind {
		case command.KindText:
			output.Text = result.Text
		case command.KindJSON:
			output.JSON = result.JSON
			if response, ok := result.JSON.(index.QueryResponse); ok {
				output.Text = FormatQueryResponse(response)
			}
		}
		return nil, output, nil
	}
}

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}
