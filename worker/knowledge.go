package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/agent"
	"github.com/evermind-ai/evermind/bus"
)

// NewKnowledge binds the background knowledge operations to the broker:
// chat.message events are mined for durable facts independently of the
// reply flow, and knowledge.inject events store curated facts directly.
func NewKnowledge(client *bus.Client, pipeline *agent.Pipeline, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &knowledgeHandlers{pipeline: pipeline, logger: logger}

	client.On(bus.EventChatMessage, bus.TopicActionRequests, h.onChatMessage)
	client.On(bus.EventKnowledgeInject, bus.TopicBusinessFacts, h.onInject)

	caps := []bus.Definition{
		{EventName: bus.EventChatMessage, Topic: bus.TopicActionRequests, Description: "A chat message to mine for durable facts in the background"},
		{EventName: bus.EventKnowledgeInject, Topic: bus.TopicBusinessFacts, Description: "A fact to insert directly into semantic memory"},
	}
	return New("knowledge-worker", "Background fact extraction and knowledge injection", client, caps, logger)
}

type knowledgeHandlers struct {
	pipeline *agent.Pipeline
	logger   *zap.Logger
}

func (h *knowledgeHandlers) onChatMessage(ctx context.Context, env *bus.Envelope) error {
	var payload bus.ChatMessagePayload
	if err := env.Decode(&payload); err != nil {
		return err
	}
	if agent.IsExplanationTrigger(payload.Message) {
		return nil
	}

	msg := agent.InboundMessage{
		UserID:         payload.UserID,
		ConversationID: payload.ConversationID,
		MessageID:      payload.MessageID,
		Message:        payload.Message,
	}
	if ts, err := time.Parse(time.RFC3339, payload.Timestamp); err == nil {
		msg.Timestamp = ts
	}

	stored, err := h.pipeline.ExtractAndStoreFacts(ctx, msg)
	if err != nil {
		return fmt.Errorf("extract facts: %w", err)
	}
	if stored > 0 {
		h.logger.Info("facts stored",
			zap.String("conversation_id", payload.ConversationID),
			zap.Int("count", stored))
	}
	return nil
}

func (h *knowledgeHandlers) onInject(ctx context.Context, env *bus.Envelope) error {
	var payload bus.KnowledgeInjectPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}
	if err := h.pipeline.InjectKnowledge(ctx, payload.Content, payload.UserID, payload.Metadata); err != nil {
		return fmt.Errorf("inject knowledge: %w", err)
	}
	h.logger.Info("knowledge injected", zap.String("user_id", payload.UserID))
	return nil
}
