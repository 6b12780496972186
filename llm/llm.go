// Package llm defines the single-shot text-completion capability the agent
// core consumes. Provider packages (anthropic, openai) implement it; the
// core treats every provider failure uniformly as generation being
// unavailable and applies its fallback policy.
package llm

import "context"

// Generator produces a completion for a fully composed prompt.
type Generator interface {
	// Generate returns the completion text. Any error means the provider
	// is unusable for this request; callers should wrap it with
	// core.ErrGenerationUnavailable rather than inspecting it.
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string, temperature float64) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	return f(ctx, prompt, temperature)
}
