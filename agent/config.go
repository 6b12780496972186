// Package agent implements the retrieval-augmented reply pipeline:
// penalty-adjusted knowledge retrieval, fact extraction, prompt
// composition, trace recording, feedback processing, and explanation
// reconstruction.
package agent

// DefaultAgentID tags episodic turns written by this agent.
const DefaultAgentID = "chat-agent"

// DefaultUserID is used when an inbound event carries no user identity.
// The memory service requires a stable UUID-shaped identifier.
const DefaultUserID = "00000000-0000-0000-0000-000000000001"

// FallbackReply is returned whenever generation is unavailable.
const FallbackReply = "I'm having trouble processing that."

// Limits bounds every retrieval and composition step of the pipeline.
type Limits struct {
	// HistoryLimit bounds relevance-ranked history retrieval.
	HistoryLimit int

	// TraceScanLimit bounds the recent-turn scan for a trace identifier
	// during explanation lookup.
	TraceScanLimit int

	// FactContextLimit bounds the history window given to fact extraction.
	FactContextLimit int

	// KnowledgeLimit bounds semantic knowledge retrieval.
	KnowledgeLimit int

	// PromptHistoryWindow is the number of trailing turns embedded in the
	// reply prompt.
	PromptHistoryWindow int

	// PromptKnowledgeWindow is the number of top adjusted items embedded
	// in the reply prompt.
	PromptKnowledgeWindow int

	// ExplainTurnWindow is the number of trailing turns annotated in an
	// explanation.
	ExplainTurnWindow int

	// PromptPreviewBudget is the hard character cutoff for the prompt
	// preview section of an explanation.
	PromptPreviewBudget int

	// PenaltyStep is added to a fingerprint's accumulated penalty on each
	// negative feedback citing it.
	PenaltyStep float64

	// FactTemperature and ReplyTemperature are the generation temperatures
	// for the two completion calls.
	FactTemperature  float64
	ReplyTemperature float64
}

// DefaultLimits returns the production defaults.
func DefaultLimits() Limits {
	return Limits{
		HistoryLimit:          10,
		TraceScanLimit:        20,
		FactContextLimit:      5,
		KnowledgeLimit:        5,
		PromptHistoryWindow:   10,
		PromptKnowledgeWindow: 5,
		ExplainTurnWindow:     5,
		PromptPreviewBudget:   300,
		PenaltyStep:           0.1,
		FactTemperature:       0.3,
		ReplyTemperature:      0.7,
	}
}
