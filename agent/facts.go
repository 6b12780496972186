package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/evermind-ai/evermind/core"
	"github.com/evermind-ai/evermind/llm"
)

// FactExtractor derives atomic factual statements from a user message. The
// extraction itself is delegated to the generator; this type owns the input
// shaping and output normalization.
type FactExtractor struct {
	gen    llm.Generator
	limits Limits
}

// NewFactExtractor creates an extractor using gen.
func NewFactExtractor(gen llm.Generator, limits Limits) *FactExtractor {
	return &FactExtractor{gen: gen, limits: limits}
}

const factPrompt = `Analyze the user message and extract facts to remember.
CONTEXT: %s
MESSAGE: %s
Return ONLY facts, one per line.`

// Extract returns the facts found in message, one per returned element.
// A blank or "none" completion yields zero facts. history provides recent
// conversational context; pass nil to extract from the message alone.
func (e *FactExtractor) Extract(ctx context.Context, message string, history []core.ConversationTurn) ([]string, error) {
	prompt := fmt.Sprintf(factPrompt, formatHistory(history, e.limits.FactContextLimit), message)

	completion, err := e.gen.Generate(ctx, prompt, e.limits.FactTemperature)
	if err != nil {
		return nil, fmt.Errorf("extract facts: %w (%w)", err, core.ErrGenerationUnavailable)
	}
	return parseFacts(completion), nil
}

// parseFacts normalizes the generator output: one fact per non-blank line,
// with a bare "none" meaning no facts.
func parseFacts(completion string) []string {
	completion = strings.TrimSpace(completion)
	if completion == "" || strings.EqualFold(completion, "none") {
		return nil
	}

	var facts []string
	for _, line := range strings.Split(completion, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		facts = append(facts, line)
	}
	return facts
}
