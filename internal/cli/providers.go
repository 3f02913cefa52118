package cli

import (
	"fmt"
	"os"
	"path/filepath"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	weaviateclient "github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.etcd.io/bbolt"

	"ragstack/config"
	"ragstack/internal/adapter/embedding"
	"ragstack/internal/adapter/llm"
	"ragstack/internal/adapter/vectorstore/bolt"
	"ragstack/internal/adapter/vectorstore/memory"
	"ragstack/internal/adapter/vectorstore/qdrant"
	"ragstack/internal/adapter/vectorstore/weaviate"
	"ragstack/internal/port"
	"ragstack/internal/usecase"
)

// buildEmbedder creates the embedding provider named in the config.
func buildEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "voyage":
		return embedding.NewVoyageEmbedder(
			cfg.Embedding.APIKeyEnv,
			cfg.Embedding.Model,
			cfg.Embedding.BaseURL,
			cfg.Embedding.Dimension,
			cfg.Embedding.BatchSize,
		)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

// buildLLM creates the generation provider named in the config.
func buildLLM(cfg *config.Config) (port.LLM, error) {
	switch cfg.LLM.Provider {
	case "cerebras":
		return llm.NewCerebrasClient(
			cfg.LLM.APIKeyEnv,
			cfg.LLM.Model,
			cfg.LLM.BaseURL,
			cfg.LLM.MaxTokens,
			cfg.LLM.Temperature,
		)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}

// buildStore creates the vector store backend named in the config. The
// returned closer releases backend resources; call it exactly once.
func buildStore(cfg *config.Config, rootDir string, dimension int) (port.VectorStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Vector.Backend {
	case "qdrant":
		client, err := qdrantclient.NewClient(&qdrantclient.Config{
			Host:   cfg.Vector.Qdrant.Host,
			Port:   cfg.Vector.Qdrant.Port,
			APIKey: os.Getenv(cfg.Vector.Qdrant.APIKeyEnv),
			UseTLS: cfg.Vector.Qdrant.UseTLS,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create qdrant client: %w", err)
		}
		store := qdrant.New(client, qdrant.Config{
			Collection: cfg.Vector.Collection,
			Dimension:  dimension,
		})
		return store, client.Close, nil

	case "weaviate":
		wcfg := weaviateclient.Config{
			Host:   cfg.Vector.Weaviate.Host,
			Scheme: cfg.Vector.Weaviate.Scheme,
		}
		if key := os.Getenv(cfg.Vector.Weaviate.APIKeyEnv); key != "" {
			wcfg.Headers = map[string]string{"Authorization": "Bearer " + key}
		}
		client, err := weaviateclient.NewClient(wcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create weaviate client: %w", err)
		}
		store := weaviate.New(client, weaviate.Config{
			Class:     cfg.Vector.Collection,
			Dimension: dimension,
		})
		return store, noop, nil

	case "bolt":
		path := cfg.Vector.Bolt.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(rootDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		db, err := bbolt.Open(path, 0600, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open vector database: %w", err)
		}
		return bolt.New(db, dimension), db.Close, nil

	case "memory":
		return memory.New(dimension), noop, nil

	default:
		return nil, nil, fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}
}

// buildService wires the full RAG service from config. The returned
// closer shuts down the vector backend.
func buildService(cfg *config.Config, rootDir string) (*usecase.RAGService, func() error, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	generator, err := buildLLM(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	store, closeStore, err := buildStore(cfg, rootDir, embedder.Dimension())
	if err != nil {
		return nil, nil, err
	}

	return usecase.NewRAGService(embedder, store, generator), closeStore, nil
}
