// Package core defines the canonical in-memory representations shared by
// every other package: conversation turns, knowledge items, traces, and
// feedback records. Storage backends and LLM providers normalize their
// results into these structs at the boundary, so the rest of the system
// never sees provider-shaped data.
package core

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationTurn is a single stored exchange in episodic memory.
// Turns are immutable once stored.
type ConversationTurn struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Score     float64           `json:"score,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// KnowledgeItem is an atomic fact in semantic memory. Score is the
// relevance assigned by search and may be lowered in-memory by the
// retrieval adjuster; the adjusted value is never written back.
// RawScore holds the pre-adjustment score once the adjuster has run, so
// adjustment always anchors to the search-assigned value no matter how
// often a batch passes through it. Zero means "not yet adjusted".
type KnowledgeItem struct {
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	RawScore float64           `json:"raw_score,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Trace records the exact inputs that produced one reply, keyed by the
// reply identifier. Written once, immediately after generation; never
// updated.
type Trace struct {
	ReplyID             string             `json:"reply_id"`
	ConversationHistory []ConversationTurn `json:"conversation_history"`
	KnowledgeResults    []KnowledgeItem    `json:"knowledge_results"`
	PromptUsed          string             `json:"prompt_used"`
	ReplyText           string             `json:"reply_text"`
	UserMessage         string             `json:"user_message"`
	CreatedAt           time.Time          `json:"created_at"`
}

// FeedbackRecord is one user rating of a reply.
type FeedbackRecord struct {
	MessageID     string    `json:"message_id"`
	IsHelpful     bool      `json:"is_helpful"`
	UserID        string    `json:"user_id"`
	KnowledgeUsed []string  `json:"knowledge_used,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
