package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/core"
	"github.com/evermind-ai/evermind/llm"
	"github.com/evermind-ai/evermind/memory"
)

// explanationTriggers are matched case-insensitively against the trimmed
// message text. A match routes the message to explanation instead of
// generation.
var explanationTriggers = map[string]struct{}{
	"why did you say that?":  {},
	"why did you say that":   {},
	"explain that":           {},
	"how did you know that?": {},
	"how did you know that":  {},
}

// IsExplanationTrigger reports whether message asks for an explanation of
// the previous reply.
func IsExplanationTrigger(message string) bool {
	_, ok := explanationTriggers[strings.ToLower(strings.TrimSpace(message))]
	return ok
}

// InboundMessage is one user message entering the pipeline.
type InboundMessage struct {
	UserID         string
	ConversationID string
	MessageID      string
	Message        string
	Timestamp      time.Time
}

// Reply is the pipeline's answer to an inbound message. ReplyID keys the
// stored trace so later feedback can reference it. IsExplanation marks
// replies produced by the explanation path rather than generation.
type Reply struct {
	Text          string
	ReplyID       string
	IsExplanation bool
}

// Pipeline sequences the retrieval-augmented reply flow for each inbound
// message and exposes the feedback and explanation entry points. One
// pipeline serves all users; every request's data is request-scoped.
type Pipeline struct {
	svc       memory.Service
	adjuster  *RetrievalAdjuster
	extractor *FactExtractor
	replier   *ReplyGenerator
	traces    *TraceStore
	feedback  *FeedbackProcessor
	explainer *Explainer
	agentID   string
	limits    Limits
	logger    *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithAgentID overrides the agent identifier used to tag episodic turns.
func WithAgentID(agentID string) PipelineOption {
	return func(p *Pipeline) {
		p.agentID = agentID
	}
}

// WithLimits overrides the default retrieval and composition limits.
func WithLimits(limits Limits) PipelineOption {
	return func(p *Pipeline) {
		p.limits = limits
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline wires the pipeline components over svc and gen.
func NewPipeline(svc memory.Service, gen llm.Generator, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		svc:     svc,
		agentID: DefaultAgentID,
		limits:  DefaultLimits(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	ledger := NewPenaltyLedger(svc, p.limits.PenaltyStep)
	p.adjuster = NewRetrievalAdjuster(ledger, p.logger)
	p.extractor = NewFactExtractor(gen, p.limits)
	p.replier = NewReplyGenerator(gen, p.limits)
	p.traces = NewTraceStore(svc)
	p.feedback = NewFeedbackProcessor(svc, ledger, p.traces, p.agentID, p.logger)
	p.explainer = NewExplainer(svc, p.traces, p.agentID, p.limits, p.logger)
	return p
}

// HandleMessage runs the full pipeline for one inbound message: history
// retrieval, knowledge retrieval with penalty adjustment, fact extraction
// and storage, reply generation, trace storage, and reply emission.
//
// Each side-effecting step is isolated: a failure is logged and the
// remaining steps still run. Only malformed input is rejected.
func (p *Pipeline) HandleMessage(ctx context.Context, msg InboundMessage) (*Reply, error) {
	if strings.TrimSpace(msg.Message) == "" {
		return nil, fmt.Errorf("empty message: %w", core.ErrMalformedInput)
	}
	if msg.UserID == "" {
		msg.UserID = DefaultUserID
	}
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	log := p.logger.With(
		zap.String("user_id", msg.UserID),
		zap.String("conversation_id", msg.ConversationID),
		zap.String("message_id", msg.MessageID))

	if IsExplanationTrigger(msg.Message) {
		log.Info("explanation request detected")
		text := p.explainer.Explain(ctx, msg.ConversationID, msg.UserID)
		return &Reply{Text: text, ReplyID: uuid.NewString(), IsExplanation: true}, nil
	}

	// Store the user message in episodic memory.
	if err := p.svc.LogInteraction(ctx, p.agentID, core.RoleUser, msg.Message, msg.UserID, map[string]string{
		"conversation_id": msg.ConversationID,
		"message_id":      msg.MessageID,
		"timestamp":       msg.Timestamp.Format(time.RFC3339),
	}); err != nil {
		log.Warn("user message not stored", zap.Error(err))
	}

	// Relevant history.
	history, err := p.svc.SearchInteractions(ctx, p.agentID, msg.Message, msg.UserID, p.limits.HistoryLimit)
	if err != nil {
		log.Warn("history retrieval failed", zap.Error(err))
		history = nil
	}

	// Knowledge, penalty-adjusted.
	var knowledge []core.KnowledgeItem
	raw, err := p.svc.SearchKnowledge(ctx, msg.Message, msg.UserID, p.limits.KnowledgeLimit)
	if err != nil {
		log.Warn("knowledge search failed", zap.Error(err))
	} else {
		knowledge = p.adjuster.Adjust(ctx, msg.UserID, raw)
	}

	// New facts from the raw message. History is deliberately left out of
	// the extraction context to avoid re-extracting facts already stored.
	facts, err := p.extractor.Extract(ctx, msg.Message, nil)
	if err != nil {
		log.Warn("fact extraction failed", zap.Error(err))
	}
	for _, fact := range facts {
		if err := p.svc.StoreKnowledge(ctx, fact, msg.UserID, map[string]string{
			"conversation_id": msg.ConversationID,
			"message_id":      msg.MessageID,
			"source":          "user_message",
		}); err != nil {
			log.Warn("fact not stored", zap.Error(err))
		}
	}
	if len(facts) > 0 {
		log.Info("facts extracted", zap.Int("count", len(facts)))
	}

	// Generate the reply.
	prompt := p.replier.ComposePrompt(msg.Message, history, knowledge)
	replyText, genErr := p.replier.Reply(ctx, prompt)
	if genErr != nil {
		log.Warn("generation unavailable, using fallback reply", zap.Error(genErr))
	}

	// Persist the trace under a newly minted reply identifier. On a
	// generation failure the trace is still saved, but the assistant turn
	// below omits the trace linkage.
	replyID := uuid.NewString()
	trace := core.Trace{
		ReplyID:             replyID,
		ConversationHistory: history,
		KnowledgeResults:    knowledge,
		PromptUsed:          prompt,
		ReplyText:           replyText,
		UserMessage:         msg.Message,
		CreatedAt:           time.Now().UTC(),
	}
	if err := p.traces.Save(ctx, msg.UserID, trace); err != nil {
		log.Warn("trace not stored", zap.Error(err))
	}

	replyMeta := map[string]string{
		"conversation_id": msg.ConversationID,
		"in_response_to":  msg.MessageID,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
	if genErr == nil {
		replyMeta["trace_id"] = replyID
	}
	if err := p.svc.LogInteraction(ctx, p.agentID, core.RoleAssistant, replyText, msg.UserID, replyMeta); err != nil {
		log.Warn("assistant reply not stored", zap.Error(err))
	}

	log.Info("reply generated",
		zap.String("reply_id", replyID),
		zap.Int("history_turns", len(history)),
		zap.Int("knowledge_items", len(knowledge)),
		zap.Bool("fallback", genErr != nil))

	return &Reply{Text: replyText, ReplyID: replyID}, nil
}

// HandleFeedback applies one feedback submission.
func (p *Pipeline) HandleFeedback(ctx context.Context, record core.FeedbackRecord, conversationID string) error {
	return p.feedback.Process(ctx, record, conversationID)
}

// HandleExplanation produces an explanation for the most recent reply in
// the conversation.
func (p *Pipeline) HandleExplanation(ctx context.Context, conversationID, userID string) string {
	if userID == "" {
		userID = DefaultUserID
	}
	return p.explainer.Explain(ctx, conversationID, userID)
}

// ExtractAndStoreFacts runs fact extraction out of band, with recent
// history as context. Used by the background knowledge worker.
func (p *Pipeline) ExtractAndStoreFacts(ctx context.Context, msg InboundMessage) (int, error) {
	if msg.UserID == "" {
		msg.UserID = DefaultUserID
	}

	history, err := p.svc.GetRecentHistory(ctx, p.agentID, msg.UserID, p.limits.FactContextLimit)
	if err != nil {
		p.logger.Warn("fact context unavailable", zap.Error(err))
		history = nil
	}

	facts, err := p.extractor.Extract(ctx, msg.Message, history)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, fact := range facts {
		err := p.svc.StoreKnowledge(ctx, fact, msg.UserID, map[string]string{
			"conversation_id": msg.ConversationID,
			"source":          "chat.message",
		})
		if err != nil {
			p.logger.Warn("fact not stored", zap.Error(err))
			continue
		}
		stored++
	}
	return stored, nil
}

// InjectKnowledge stores a manually supplied fact in semantic memory.
func (p *Pipeline) InjectKnowledge(ctx context.Context, content, userID string, metadata map[string]string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("empty knowledge content: %w", core.ErrMalformedInput)
	}
	if userID == "" {
		userID = DefaultUserID
	}
	meta := map[string]string{"source": "knowledge.inject"}
	for k, v := range metadata {
		meta[k] = v
	}
	return p.svc.StoreKnowledge(ctx, content, userID, meta)
}
