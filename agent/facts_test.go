package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermind-ai/evermind/agent"
	"github.com/evermind-ai/evermind/core"
	"github.com/evermind-ai/evermind/llm"
)

func extractWith(t *testing.T, completion string) []string {
	t.Helper()
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string, temperature float64) (string, error) {
		return completion, nil
	})
	extractor := agent.NewFactExtractor(gen, agent.DefaultLimits())
	facts, err := extractor.Extract(context.Background(), "message", nil)
	require.NoError(t, err)
	return facts
}

func TestFactExtractor_OneFactPerLine(t *testing.T) {
	facts := extractWith(t, "User lives in Lisbon\n\n  User speaks Portuguese  \n")
	assert.Equal(t, []string{"User lives in Lisbon", "User speaks Portuguese"}, facts)
}

func TestFactExtractor_NoneMeansNoFacts(t *testing.T) {
	assert.Empty(t, extractWith(t, "none"))
	assert.Empty(t, extractWith(t, "  None  "))
	assert.Empty(t, extractWith(t, ""))
	assert.Empty(t, extractWith(t, "   \n  "))
}

func TestFactExtractor_GenerationFailure(t *testing.T) {
	extractor := agent.NewFactExtractor(failEveryGenerator(), agent.DefaultLimits())
	_, err := extractor.Extract(context.Background(), "message", nil)
	require.ErrorIs(t, err, core.ErrGenerationUnavailable)
}

func TestFactExtractor_PassesTemperature(t *testing.T) {
	var seen float64
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string, temperature float64) (string, error) {
		seen = temperature
		return "none", nil
	})
	extractor := agent.NewFactExtractor(gen, agent.DefaultLimits())
	_, err := extractor.Extract(context.Background(), "message", nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, seen, 1e-9)
}
