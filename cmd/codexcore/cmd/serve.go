package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cxmcp "github.com/codexlab/codexcore/internal/mcp"
	"github.com/codexlab/codexcore/internal/transport"
)

func newServeCmd() *cobra.Command {
	var transportName string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the command registry over stdio, HTTP, or MCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := transportName
			if t == "" {
				t = state.cfg.Server.Transport
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, t, addr)
		},
	}

	cmd.Flags().StringVar(&transportName, "transport", "", "stdio, http, or mcp (default: server.transport from config)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address for the http transport (default: 127.0.0.1:<server.port>)")
	return cmd
}

// serve dispatches to the requested transport. ctx is cancelled on
// SIGINT/SIGTERM; each transport shuts down gracefully: stop accepting new
// work, let in-flight work finish, then return.
func serve(ctx context.Context, transportName, addr string) error {
	switch transportName {
	case "stdio":
		server := transport.NewStdioServer(state.registry, state.cc)
		return server.Serve(ctx, os.Stdin, os.Stdout)
	case "mcp":
		server := cxmcp.NewServer(state.registry, state.cc)
		return server.Serve(ctx)
	case "http":
		if addr == "" {
			addr = fmt.Sprintf("127.0.0.1:%d", state.cfg.Server.Port)
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		server := transport.NewHTTPServer(state.registry, state.cc)
		return server.Serve(ctx, ln)
	default:
		return fmt.Errorf("unknown transport %q (want stdio, http, or mcp)", transportName)
	}
}
