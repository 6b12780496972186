package agent

import (
	"context"
	"fmt"

	"github.com/evermind-ai/evermind/core"
	"github.com/evermind-ai/evermind/llm"
)

// ReplyGenerator composes the retrieval-augmented prompt and normalizes the
// completion. Generation is delegated to the generator; on any provider
// failure the fixed fallback text is substituted.
type ReplyGenerator struct {
	gen    llm.Generator
	limits Limits
}

// NewReplyGenerator creates a reply generator using gen.
func NewReplyGenerator(gen llm.Generator, limits Limits) *ReplyGenerator {
	return &ReplyGenerator{gen: gen, limits: limits}
}

const replyPrompt = `You are a helpful, friendly chat assistant. You have access to:
1. Conversation history (what was discussed in this chat)
2. Stored knowledge (facts you've learned about the user)

CONVERSATION HISTORY:
%s

STORED KNOWLEDGE:
%s

CURRENT USER MESSAGE: %s

INSTRUCTIONS:
1. Respond naturally and helpfully to the user's message
2. Use the conversation history to maintain context and continuity
3. Use stored knowledge to answer questions about facts you've learned
4. If the user shares new information, acknowledge it naturally
5. If the user asks about something from earlier in the conversation, reference it
6. Be concise but complete
7. If this is the start of a conversation (no history), introduce yourself briefly

Your response:`

// ComposePrompt embeds the formatted history and knowledge windows around
// the current message. The result is also what gets recorded in the trace.
func (g *ReplyGenerator) ComposePrompt(message string, history []core.ConversationTurn, knowledge []core.KnowledgeItem) string {
	return fmt.Sprintf(replyPrompt,
		formatHistory(history, g.limits.PromptHistoryWindow),
		formatKnowledge(knowledge, g.limits.PromptKnowledgeWindow),
		message)
}

// Reply generates the completion for prompt. On provider failure it returns
// the fixed fallback text together with an error wrapping
// core.ErrGenerationUnavailable, so callers can both answer the user and
// record the degradation.
func (g *ReplyGenerator) Reply(ctx context.Context, prompt string) (string, error) {
	text, err := g.gen.Generate(ctx, prompt, g.limits.ReplyTemperature)
	if err != nil {
		return FallbackReply, fmt.Errorf("generate reply: %w (%w)", err, core.ErrGenerationUnavailable)
	}
	return text, nil
}
