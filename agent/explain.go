package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/core"
	"github.com/evermind-ai/evermind/memory"
)

// NothingToExplain is returned when no prior exchange exists at all.
const NothingToExplain = "I don't have a previous response to explain."

// reconstructedPromptNote stands in for the prompt preview when the
// original prompt is gone and the explanation was rebuilt from a fresh
// retrieval.
const reconstructedPromptNote = "LLM prompt combining episodic and semantic memory (RAG pattern)"

// Explainer reconstructs a human-readable account of why a reply was
// produced. It prefers the stored trace; absent one it re-derives an
// equivalent retrieval against the last user turn. An explanation is always
// produced, never an error.
type Explainer struct {
	svc     memory.Service
	traces  *TraceStore
	agentID string
	limits  Limits
	logger  *zap.Logger
}

// NewExplainer creates an explainer over svc.
func NewExplainer(svc memory.Service, traces *TraceStore, agentID string, limits Limits, logger *zap.Logger) *Explainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explainer{
		svc:     svc,
		traces:  traces,
		agentID: agentID,
		limits:  limits,
		logger:  logger,
	}
}

// Explanation request states. The request starts in lookup and always
// terminates in found, reconstruct, or fallbackNone.
type explainState int

const (
	stateLookupTrace explainState = iota
	stateFound
	stateReconstruct
	stateFallbackNone
)

// Explain produces the explanation for the most recent reply in the given
// conversation.
func (e *Explainer) Explain(ctx context.Context, conversationID, userID string) string {
	state := stateLookupTrace
	var trace *core.Trace

	for {
		switch state {
		case stateLookupTrace:
			trace = e.lookupTrace(ctx, conversationID, userID)
			if trace != nil {
				state = stateFound
			} else {
				state = stateReconstruct
			}

		case stateFound:
			return renderExplanation(
				trace.ConversationHistory,
				trace.KnowledgeResults,
				trace.PromptUsed,
				e.limits)

		case stateReconstruct:
			history, knowledge, ok := e.reconstruct(ctx, userID)
			if !ok {
				state = stateFallbackNone
				continue
			}
			return renderExplanation(history, knowledge, reconstructedPromptNote, e.limits)

		case stateFallbackNone:
			return NothingToExplain
		}
	}
}

// lookupTrace scans recent assistant turns for one tagged with this
// conversation that carries a trace identifier, then loads the trace.
// Any failure along the way degrades to "no trace".
func (e *Explainer) lookupTrace(ctx context.Context, conversationID, userID string) *core.Trace {
	recent, err := e.svc.GetRecentHistory(ctx, e.agentID, userID, e.limits.TraceScanLimit)
	if err != nil {
		e.logger.Warn("trace lookup: recent history unavailable", zap.Error(err))
		return nil
	}

	// Newest turn first.
	for i := len(recent) - 1; i >= 0; i-- {
		turn := recent[i]
		if turn.Role != core.RoleAssistant {
			continue
		}
		if turn.Metadata["conversation_id"] != conversationID {
			continue
		}
		traceID := turn.Metadata["trace_id"]
		if traceID == "" {
			continue
		}
		trace, err := e.traces.Get(ctx, userID, traceID)
		if err != nil {
			e.logger.Warn("trace load failed",
				zap.String("trace_id", traceID),
				zap.Error(err))
			return nil
		}
		return trace
	}
	return nil
}

// reconstruct re-derives the retrieval the original reply would have used:
// ordinary recent history, the most recent user/assistant pair, and a fresh
// knowledge search against that user turn. Returns ok=false when no prior
// pair exists.
func (e *Explainer) reconstruct(ctx context.Context, userID string) ([]core.ConversationTurn, []core.KnowledgeItem, bool) {
	history, err := e.svc.GetRecentHistory(ctx, e.agentID, userID, e.limits.HistoryLimit)
	if err != nil {
		e.logger.Warn("reconstruct: recent history unavailable", zap.Error(err))
		return nil, nil, false
	}

	var lastUser, lastAssistant *core.ConversationTurn
	for i := len(history) - 1; i >= 0; i-- {
		turn := history[i]
		if turn.Role == core.RoleAssistant && lastAssistant == nil {
			lastAssistant = &history[i]
		}
		if turn.Role == core.RoleUser && lastUser == nil {
			lastUser = &history[i]
		}
		if lastUser != nil && lastAssistant != nil {
			break
		}
	}
	if lastUser == nil || lastAssistant == nil {
		return nil, nil, false
	}

	knowledge, err := e.svc.SearchKnowledge(ctx, lastUser.Content, userID, e.limits.KnowledgeLimit)
	if err != nil {
		e.logger.Warn("reconstruct: knowledge search failed", zap.Error(err))
		knowledge = nil
	}

	// Truncate history up to and including the user turn being explained.
	truncated := make([]core.ConversationTurn, 0, len(history))
	for _, turn := range history {
		truncated = append(truncated, turn)
		if turn.Content == lastUser.Content {
			break
		}
	}
	return truncated, knowledge, true
}

// renderExplanation renders the structured explanation text: the trailing
// episodic turns with coarse confidence labels, the knowledge items used
// verbatim, and a truncated preview of the prompt.
func renderExplanation(history []core.ConversationTurn, knowledge []core.KnowledgeItem, promptUsed string, limits Limits) string {
	var b strings.Builder
	b.WriteString("## 🔎 Reasoning Explanation\n\n")

	b.WriteString("### 🧠 Episodic Memories (Context)\n")
	if len(history) == 0 {
		b.WriteString("_No recent conversation history used._\n")
	} else {
		window := history
		if len(window) > limits.ExplainTurnWindow {
			window = window[len(window)-limits.ExplainTurnWindow:]
		}
		for i, turn := range window {
			content := strings.ReplaceAll(turn.Content, "\n", " ")
			// Cut on rune boundaries so multibyte content stays valid UTF-8.
			if runes := []rune(content); len(runes) > 80 {
				content = string(runes[:80])
			}
			// Position within the window is the only confidence signal:
			// the most recent turns rate High, the rest Medium.
			confidence := "Medium"
			if i+1 > 3 {
				confidence = "High"
			}
			fmt.Fprintf(&b, "- **%s**: \"%s...\" *(Confidence: %s)*\n",
				capitalize(string(turn.Role)), content, confidence)
		}
	}

	b.WriteString("\n### 📚 Semantic Knowledge (Facts)\n")
	if len(knowledge) == 0 {
		b.WriteString("_No relevant stored knowledge found._\n")
	} else {
		for _, item := range knowledge {
			fmt.Fprintf(&b, "- \"%s\"\n", item.Content)
		}
	}

	b.WriteString("\n### 📝 Prompt Composition\n")
	preview := promptUsed
	if idx := strings.Index(preview, "INSTRUCTIONS:"); idx >= 0 {
		preview = preview[:idx]
	}
	preview = strings.TrimSpace(preview)
	preview = truncate(preview, limits.PromptPreviewBudget)
	fmt.Fprintf(&b, "```text\n%s\n[...Instructions...]\n```\n", preview)

	return b.String()
}
