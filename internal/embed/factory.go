package embed

import (
	"context"
	"log/slog"
)

// Provider names an Embedder backend.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderStatic Provider = "static"
)

// Resolve builds the requested embedder, falling back to the static
// hash-based embedder (and logging the fallback) if the requested provider
// fails to initialize. This is the adapter's single required behavior per
// its design: a caller never hard-fails just because a model server is
// unreachable.
func Resolve(ctx context.Context, provider Provider, model string) Embedder {
	switch provider {
	case ProviderOllama:
		cfg := DefaultOllamaConfig()
		if model != "" {
			cfg.Model = model
		}
		embedder, err := NewOllamaEmbedder(ctx, cfg)
		if err != nil {
			slog.Warn("embedder_fallback",
				slog.String("requested", string(provider)),
				slog.String("fallback", "static"),
				slog.String("error", err.Error()))
			return NewStaticEmbedder()
		}
		return embedder
	default:
		return NewStaticEmbedder()
	}
}

// ResolveCached wraps Resolve's result in an LRU cache.
func ResolveCached(ctx context.Context, provider Provider, model string, cacheSize int) Embedder {
	return NewCachedEmbedder(Resolve(ctx, provider, model), cacheSize)
}
