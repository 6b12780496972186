// Package openai provides an embedder backed by the OpenAI embeddings API
// (or any OpenAI-compatible endpoint via BaseURL).
package openai

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
)

// Config configures the OpenAI embedder.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint for compatible providers.
	BaseURL string
	// Model defaults to text-embedding-3-small.
	Model string
	// Dimensions defaults to 1536.
	Dimensions int
}

// Embedder converts text to vectors via the embeddings endpoint.
type Embedder struct {
	client     *goopenai.Client
	model      string
	dimensions int
}

// New creates an embedder from cfg.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = string(goopenai.SmallEmbedding3)
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}

	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client:     goopenai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates an embedding vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      []string{text},
		Model:      goopenai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return resp.Data[0].Embedding, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
