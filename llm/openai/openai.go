// Package openai implements the Generator interface on the OpenAI chat
// completions API, or any compatible endpoint via BaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

// Config configures the OpenAI generator.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint for compatible providers.
	BaseURL string
	// Model defaults to gpt-4o-mini.
	Model string
}

// Generator calls the chat completions API with a single user message.
type Generator struct {
	client *goopenai.Client
	model  string
}

// New creates a generator from cfg.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT4oMini
	}

	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client: goopenai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}, nil
}

// Generate returns the completion for prompt.
func (g *Generator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: float32(temperature),
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai api: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai api: no choices returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai api: empty completion")
	}
	return text, nil
}
