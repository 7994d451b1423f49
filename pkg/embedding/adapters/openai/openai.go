// Package openai implements the embedding.Provider interface against any
// OpenAI-compatible embeddings endpoint, including a local Ollama server.
package openai

import (
	"context"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/openclaw/memtier/pkg/embedding"
	errs "github.com/openclaw/memtier/pkg/errors"
	"github.com/openclaw/memtier/pkg/log"
)

// ErrEmptyModel is returned when no embedding model is configured.
var ErrEmptyModel = errors.New("embedding model cannot be empty")

// requestTimeout bounds a single embeddings call. Batch inputs share one
// request, so this is generous.
const requestTimeout = 60 * time.Second

// Config holds the configuration for the OpenAI adapter.
type Config struct {
	// APIKey authenticates against the endpoint. Local servers usually
	// accept any value.
	APIKey string

	// BaseURL points at the embeddings endpoint, e.g.
	// "http://127.0.0.1:11434/v1" for Ollama.
	BaseURL string

	// Model is the embedding model name.
	Model string
}

// OpenAIAdapter implements the embedding.Provider interface using the
// OpenAI-compatible embeddings API.
type OpenAIAdapter struct {
	client *openai.Client
	model  string
}

// NewOpenAIAdapter creates a new OpenAI-compatible embedding adapter.
func NewOpenAIAdapter(config Config) (*OpenAIAdapter, error) {
	if config.Model == "" {
		return nil, ErrEmptyModel
	}

	apiKey := config.APIKey
	if apiKey == "" {
		// Local OpenAI-compatible servers ignore the key but the client
		// requires one.
		apiKey = "unused"
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(clientConfig),
		model:  config.Model,
	}, nil
}

// Embed generates embeddings for the given texts in one batched request.
func (a *OpenAIAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	log.DebugContext(ctx, "Generating embeddings", "count", len(texts), "model", a.model)

	request := openai.EmbeddingRequest{
		Input: embedding.TruncateInputs(texts),
		Model: openai.EmbeddingModel(a.model),
	}

	response, err := a.client.CreateEmbeddings(ctx, request)
	if err != nil {
		log.ErrorContext(ctx, "Failed to generate embeddings", "error", err)
		return nil, errs.Wrap(errs.ErrEmbeddingFailed, "embeddings request failed (%v)", err)
	}

	if len(response.Data) != len(texts) {
		return nil, errs.Wrap(errs.ErrEmbeddingFailed,
			"embedding count mismatch: got %d for %d inputs", len(response.Data), len(texts))
	}

	embeddings := make([][]float32, len(response.Data))
	for i, data := range response.Data {
		embeddings[i] = data.Embedding
	}

	return embeddings, nil
}
