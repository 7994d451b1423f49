package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/openclaw/memtier/pkg/config"
	"github.com/openclaw/memtier/pkg/embedding"
	embedmock "github.com/openclaw/memtier/pkg/embedding/adapters/mock"
	"github.com/openclaw/memtier/pkg/embedding/adapters/openai"
	"github.com/openclaw/memtier/pkg/mem/buffer/adapters/boltdb"
	"github.com/openclaw/memtier/pkg/mem/vector"
	"github.com/openclaw/memtier/pkg/mem/vector/adapters/chromem"
	"github.com/openclaw/memtier/pkg/mem/vector/adapters/pgvector"
	"github.com/openclaw/memtier/pkg/mem/vector/adapters/qdrant"
)

// openBuffer opens the bbolt-backed short-term buffer. The caller must
// Close it.
func openBuffer(cfg *config.Config) (*boltdb.BoltBuffer, error) {
	buf, err := boltdb.Open(cfg.Buffer.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open buffer at %s: %w", cfg.Buffer.Path, err)
	}
	return buf, nil
}

// openVectorStore builds the configured vector store backend. The
// returned cleanup releases backend resources and is always non-nil.
func openVectorStore(ctx context.Context, cfg *config.Config) (vector.Store, func(), error) {
	noop := func() {}

	switch strings.ToLower(cfg.Vector.Type) {
	case "qdrant":
		store, err := qdrant.NewQdrantStore(qdrant.Config{
			URL:        cfg.Vector.Qdrant.URL,
			Collection: cfg.Vector.Qdrant.Collection,
			Dimensions: cfg.Vector.Qdrant.Dimensions,
		})
		if err != nil {
			return nil, noop, err
		}
		if err := store.EnsureCollection(ctx); err != nil {
			return nil, noop, err
		}
		return store, noop, nil

	case "chromem":
		store, err := chromem.NewChromemStore(chromem.Config{
			Collection:  cfg.Vector.Chromem.Collection,
			StoragePath: cfg.Vector.Chromem.StoragePath,
		})
		return store, noop, err

	case "pgvector":
		store, err := pgvector.NewPgvectorStore(ctx, pgvector.Config{
			ConnectionString: cfg.Vector.PgVector.ConnectionString,
			TableName:        cfg.Vector.PgVector.TableName,
			Dimensions:       cfg.Vector.PgVector.Dimensions,
		})
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil

	default:
		return nil, noop, fmt.Errorf("unsupported vector store type: %s", cfg.Vector.Type)
	}
}

// newEmbedder builds the configured embedding provider.
func newEmbedder(cfg *config.Config) (embedding.Provider, error) {
	switch strings.ToLower(cfg.Embedding.Provider) {
	case "mock":
		return embedmock.NewMockProvider(), nil
	default:
		return openai.NewOpenAIAdapter(openai.Config{
			APIKey:  cfg.Embedding.APIKey,
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		})
	}
}
