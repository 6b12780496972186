package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/core"
	"github.com/evermind-ai/evermind/memory"
)

// FeedbackProcessor handles user ratings of replies: it persists the
// feedback record, and on a negative rating raises penalties for every
// knowledge item the rated reply used and appends a corrective system turn
// to episodic history.
//
// Feedback for one message is independent of feedback for any other.
// Storage failures are absorbed: the acknowledgment is returned regardless,
// durability of auxiliary records being best-effort.
type FeedbackProcessor struct {
	svc     memory.Service
	ledger  *PenaltyLedger
	traces  *TraceStore
	agentID string
	logger  *zap.Logger
}

// NewFeedbackProcessor creates a processor over svc.
func NewFeedbackProcessor(svc memory.Service, ledger *PenaltyLedger, traces *TraceStore, agentID string, logger *zap.Logger) *FeedbackProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackProcessor{
		svc:     svc,
		ledger:  ledger,
		traces:  traces,
		agentID: agentID,
		logger:  logger,
	}
}

// Process applies one feedback submission. conversationID may be empty.
// When record.KnowledgeUsed is empty, the implicated knowledge is derived
// from the rated reply's trace, if one exists.
func (p *FeedbackProcessor) Process(ctx context.Context, record core.FeedbackRecord, conversationID string) error {
	if record.MessageID == "" {
		return fmt.Errorf("feedback without message id: %w", core.ErrMalformedInput)
	}
	if record.UserID == "" {
		record.UserID = DefaultUserID
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	if len(record.KnowledgeUsed) == 0 {
		record.KnowledgeUsed = p.knowledgeFromTrace(ctx, record.UserID, record.MessageID)
	}

	if err := p.svc.Store(ctx, memory.FeedbackScopeID, record.MessageID, record, record.UserID, record.UserID); err != nil {
		p.logger.Warn("feedback record not persisted",
			zap.String("message_id", record.MessageID),
			zap.Error(err))
	}

	if record.IsHelpful {
		return nil
	}

	for _, content := range distinct(record.KnowledgeUsed) {
		if err := p.ledger.Increment(ctx, record.UserID, content); err != nil {
			p.logger.Warn("penalty not applied",
				zap.String("message_id", record.MessageID),
				zap.Error(err))
		}
	}

	correction := fmt.Sprintf(
		"User marked the previous response (msg:%s) as unhelpful/incorrect. Please correct your understanding.",
		record.MessageID)
	metadata := map[string]string{
		"in_response_to": record.MessageID,
		"type":           "feedback_correction",
		"timestamp":      record.Timestamp.Format(time.RFC3339),
	}
	if conversationID != "" {
		metadata["conversation_id"] = conversationID
	}
	if err := p.svc.LogInteraction(ctx, p.agentID, core.RoleSystem, correction, record.UserID, metadata); err != nil {
		p.logger.Warn("correction turn not logged",
			zap.String("message_id", record.MessageID),
			zap.Error(err))
	}

	return nil
}

// knowledgeFromTrace recovers the knowledge contents a reply used from its
// stored trace. Absence of a trace is not an error: the reply may predate
// trace storage or the record may have been evicted.
func (p *FeedbackProcessor) knowledgeFromTrace(ctx context.Context, userID, messageID string) []string {
	trace, err := p.traces.Get(ctx, userID, messageID)
	if err != nil {
		p.logger.Debug("no trace for rated reply",
			zap.String("message_id", messageID),
			zap.Error(err))
		return nil
	}
	contents := make([]string, 0, len(trace.KnowledgeResults))
	for _, item := range trace.KnowledgeResults {
		contents = append(contents, item.Content)
	}
	return contents
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
