// Package anthropic implements the Generator interface on the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Config configures the Anthropic generator.
type Config struct {
	APIKey string
	// Model defaults to claude-3-5-haiku-latest.
	Model string
	// MaxTokens defaults to 1024.
	MaxTokens int64
}

// Generator calls the Messages API with a single user message.
type Generator struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// New creates a generator from cfg.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = string(sdk.ModelClaude3_5HaikuLatest)
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	return &Generator{
		client:    sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Generate returns the completion for prompt.
func (g *Generator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	resp, err := g.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(g.model),
		MaxTokens:   g.maxTokens,
		Temperature: sdk.Float(temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("anthropic api: empty completion")
	}
	return strings.TrimSpace(text.String()), nil
}
