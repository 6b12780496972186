package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/config"
	"github.com/evermind-ai/evermind/llm"
	llmanthropic "github.com/evermind-ai/evermind/llm/anthropic"
	llmopenai "github.com/evermind-ai/evermind/llm/openai"
	"github.com/evermind-ai/evermind/memory"
	"github.com/evermind-ai/evermind/memory/embedder/mock"
	embopenai "github.com/evermind-ai/evermind/memory/embedder/openai"
	"github.com/evermind-ai/evermind/memory/kv"
	"github.com/evermind-ai/evermind/memory/store/chromem"
	"github.com/evermind-ai/evermind/memory/store/pgvector"
)

// buildMemory assembles the memory service from configuration: an
// embedder, a vector store backend, and a SQLite key-value store with an
// optional read-through cache. The returned closer releases all of them.
func buildMemory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (memory.Service, func(), error) {
	embedder, err := buildEmbedder(cfg.Embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("data dir: %w", err)
	}

	var vectors memory.VectorStore
	switch cfg.Store.Backend {
	case "chromem", "":
		vectors, err = chromem.New(
			chromem.WithLogger(logger),
			chromem.WithPersistence(filepath.Join(cfg.DataDir, "vectors")))
	case "pgvector":
		var pg *pgvector.Store
		pg, err = pgvector.New(ctx, cfg.Store.PostgresURL, embedder.Dimensions())
		if err == nil {
			err = pg.InitSchema(ctx)
		}
		vectors = pg
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("vector store: %w", err)
	}

	var store memory.KeyValue
	store, err = kv.NewSQLiteStore(ctx, filepath.Join(cfg.DataDir, "evermind.db"))
	if err != nil {
		vectors.Close()
		return nil, nil, fmt.Errorf("key-value store: %w", err)
	}
	if cfg.Store.CacheEntries > 0 {
		ttl, err := time.ParseDuration(cfg.Store.CacheTTL)
		if err != nil {
			ttl = 5 * time.Minute
		}
		store, err = kv.NewCached(store, cfg.Store.CacheEntries, ttl)
		if err != nil {
			vectors.Close()
			return nil, nil, fmt.Errorf("key-value cache: %w", err)
		}
	}

	svc := memory.NewLocal(vectors, store, embedder, memory.WithLogger(logger))
	closer := func() {
		store.Close()
		vectors.Close()
	}
	return svc, closer, nil
}

func buildGenerator(cfg config.LLMConfig) (llm.Generator, error) {
	switch cfg.Provider {
	case "anthropic", "":
		return llmanthropic.New(llmanthropic.Config{
			APIKey: firstNonEmpty(cfg.APIKey, os.Getenv("ANTHROPIC_API_KEY")),
			Model:  cfg.Model,
		})
	case "openai":
		return llmopenai.New(llmopenai.Config{
			APIKey:  firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY")),
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func buildEmbedder(cfg config.EmbedderConfig) (memory.Embedder, error) {
	switch cfg.Provider {
	case "mock", "":
		return mock.New(), nil
	case "openai":
		return embopenai.New(embopenai.Config{
			APIKey:  firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY")),
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case "onnx":
		return buildONNXEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
