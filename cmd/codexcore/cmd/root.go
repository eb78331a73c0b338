// Package cmd provides the CLI commands for codexcore.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codexlab/codexcore/internal/chunk"
	"github.com/codexlab/codexcore/internal/command"
	"github.com/codexlab/codexcore/internal/config"
	"github.com/codexlab/codexcore/internal/embed"
	"github.com/codexlab/codexcore/internal/logging"
	"github.com/codexlab/codexcore/internal/memory"
	"github.com/codexlab/codexcore/internal/paths"
	"github.com/codexlab/codexcore/pkg/version"
)

// appState bundles everything a subcommand needs, built once in the root
// command's PersistentPreRunE and shared by every subcommand it dispatches
// to. Mirrors command.Context's own "explicit handle, no global" posture.
type appState struct {
	cfg      *config.Config
	cc       *command.Context
	registry *command.Registry
}

var (
	state *appState

	flagProjectRoot string
	flagCodexHome   string
	flagOffline     bool
	flagMemory      bool
	flagDebug       bool

	loggingCleanup func()
)

// Execute runs the codexcore CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the root command for the codexcore CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "codexcore",
		Short:   "Semantic code index and long-term memory engine",
		Version: version.Version,
		Long: `codexcore builds and maintains a cosine-similarity vector index over a
project's source tree, captures conversational and tool-output events into
a persistent queryable memory store, and exposes both through a uniform
command surface (CLI, JSON-RPC stdio, HTTP, and MCP tools).`,
		SilenceUsage:      true,
		PersistentPreRunE: bootstrap,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if loggingCleanup != nil {
				loggingCleanup()
			}
			return nil
		},
	}
	root.SetVersionTemplate("codexcore version {{.Version}}\n")

	root.PersistentFlags().StringVar(&flagProjectRoot, "project", "", "project root (default: discovered from cwd)")
	root.PersistentFlags().StringVar(&flagCodexHome, "codex-home", "", "override CODEX_HOME for the memory store")
	root.PersistentFlags().BoolVar(&flagOffline, "offline", false, "use the dependency-free static embedder instead of Ollama")
	root.PersistentFlags().BoolVar(&flagMemory, "memory", false, "wire the memory runtime (memory_suggest/memory_fetch)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging to ~/.codexcore/logs/")

	root.AddCommand(newIndexCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newMemoryCmd())
	root.AddCommand(newCommandsCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// bootstrap resolves the project root and CODEX_HOME, loads project config,
// sets up logging, resolves the embedder, and wires the command registry
// every subcommand dispatches through.
func bootstrap(cmd *cobra.Command, args []string) error {
	logCfg := logging.DefaultConfig()
	if flagDebug {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	loggingCleanup = cleanup
	_ = logger

	projectRoot := flagProjectRoot
	if projectRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		projectRoot, err = config.FindProjectRoot(cwd)
		if err != nil {
			return fmt.Errorf("find project root: %w", err)
		}
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	codexHome := flagCodexHome
	if codexHome == "" {
		codexHome, err = paths.CodexHome()
		if err != nil {
			return fmt.Errorf("resolve codex home: %w", err)
		}
	}

	provider := embed.Provider(cfg.Embeddings.Provider)
	if flagOffline || provider == "" {
		provider = embed.ProviderStatic
	}
	embedder := embed.ResolveCached(cmd.Context(), provider, cfg.Embeddings.Model, embed.DefaultEmbeddingCacheSize)

	cc := command.NewContext(projectRoot, codexHome, embedder)
	cc.Confidence.Set(float32(cfg.Search.ConfidenceMin))
	cc.Submodules = &cfg.Submodules
	cc.Chunking = chunk.Options{
		LinesPerChunk: cfg.Search.LinesPerChunk,
		Overlap:       cfg.Search.Overlap,
	}

	registry := command.NewRegistry()
	command.RegisterDefaults(registry)

	if flagMemory {
		runtime, err := buildMemoryRuntime(codexHome, embedder)
		if err != nil {
			return fmt.Errorf("wire memory runtime: %w", err)
		}
		cc = cc.WithMemory(runtime)
	}

	state = &appState{cfg: cfg, cc: cc, registry: registry}
	return nil
}

func buildMemoryRuntime(codexHome string, embedder embed.Embedder) (*command.MemoryRuntime, error) {
	layout := paths.ForMemory(codexHome)
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}
	store, err := memory.OpenStore(layout)
	if err != nil {
		return nil, err
	}
	settings, err := memory.LoadSettings(layout.Settings)
	if err != nil {
		return nil, err
	}
	retriever := memory.NewRetriever(store, settings, embedder)
	return &command.MemoryRuntime{Store: store, Retriever: retriever, Settings: settings}, nil
}

// runVerb dispatches name/args through the shared registry and prints the
// result the same way every transport would render it: Unit prints nothing,
// Text prints as-is, JSON prints its pretty part.
func runVerb(ctx context.Context, name string, args []string) error {
	result, err := state.registry.Run(ctx, state.cc, name, args)
	if err != nil {
		return err
	}
	parts, err := result.ToMessageParts()
	if err != nil {
		return err
	}
	for _, part := range parts {
		if part.MediaType == "text/plain" {
			fmt.Println(part.Text)
		}
	}
	return nil
}
