package memory

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
	"github.com/sashabaranov/go-openai"
)

// DefaultEmbeddingModel is used when no embedding model is configured.
const DefaultEmbeddingModel = "text-embedding-3-small"

// EmbedderConfig configures the OpenAI embedding function backing the
// semantic index.
type EmbedderConfig struct {
	APIKey  string
	BaseURL string // optional custom endpoint
	Model   string // defaults to text-embedding-3-small
}

// NewOpenAIEmbedder returns a chromem embedding function backed by the
// OpenAI embeddings API.
func NewOpenAIEmbedder(cfg EmbedderConfig) (chromem.EmbeddingFunc, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for semantic memory")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(cfg.Model),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Data[0].Embedding, nil
	}, nil
}
