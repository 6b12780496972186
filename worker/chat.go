package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/agent"
	"github.com/evermind-ai/evermind/bus"
)

// ChatConfig tunes the chat worker's behavior.
type ChatConfig struct {
	// DelegateExplanations routes explanation triggers to the feedback
	// worker over the bus instead of answering them inline.
	DelegateExplanations bool
}

// NewChat binds the reply pipeline to the broker: chat.message events run
// the full retrieval-augmented flow and the reply is published as
// chat.reply. Explanation triggers are either answered inline or
// delegated as explanation.request events, whose responses the worker
// relays back as chat.reply.
func NewChat(client *bus.Client, pipeline *agent.Pipeline, cfg ChatConfig, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &chatHandlers{client: client, pipeline: pipeline, cfg: cfg, logger: logger}

	client.On(bus.EventChatMessage, bus.TopicActionRequests, h.onChatMessage)
	if cfg.DelegateExplanations {
		client.On(bus.EventExplanationResponse, bus.TopicActionResults, h.onExplanationResponse)
	}

	caps := []bus.Definition{
		{EventName: bus.EventChatMessage, Topic: bus.TopicActionRequests, Description: "A chat message from a user that needs to be processed by the chat agent"},
	}
	return New("chat-worker", "Conversational agent with retrieval-augmented replies", client, caps, logger)
}

type chatHandlers struct {
	client   *bus.Client
	pipeline *agent.Pipeline
	cfg      ChatConfig
	logger   *zap.Logger
}

func (h *chatHandlers) onChatMessage(ctx context.Context, env *bus.Envelope) error {
	var payload bus.ChatMessagePayload
	if err := env.Decode(&payload); err != nil {
		return err
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

	if h.cfg.DelegateExplanations && agent.IsExplanationTrigger(payload.Message) {
		_, err := h.client.Publish(ctx, bus.TopicActionRequests, bus.EventExplanationRequest,
			bus.ExplanationRequestPayload{
				MessageID:      payload.MessageID,
				ConversationID: payload.ConversationID,
				UserID:         payload.UserID,
				Timestamp:      time.Now().UTC().Format(time.RFC3339),
			},
			bus.WithCorrelationID(env.CorrelationID),
			bus.WithUserID(env.UserID),
			bus.WithTenantID(env.TenantID))
		if err != nil {
			return fmt.Errorf("delegate explanation: %w", err)
		}
		h.logger.Info("explanation delegated",
			zap.String("conversation_id", payload.ConversationID))
		return nil
	}

	reply, err := h.pipeline.HandleMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("handle message: %w", err)
	}

	_, err = h.client.Respond(ctx, env, bus.EventChatReply, bus.ChatReplyPayload{
		UserID:         payload.UserID,
		ConversationID: payload.ConversationID,
		Reply:          reply.Text,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		InResponseTo:   payload.MessageID,
		MessageID:      reply.ReplyID,
	})
	if err != nil {
		return fmt.Errorf("publish reply: %w", err)
	}

	h.logger.Info("reply published",
		zap.String("conversation_id", payload.ConversationID),
		zap.String("reply_id", reply.ReplyID),
		zap.Bool("explanation", reply.IsExplanation))
	return nil
}

// onExplanationResponse relays a delegated explanation back to the user's
// conversation as an ordinary chat reply.
func (h *chatHandlers) onExplanationResponse(ctx context.Context, env *bus.Envelope) error {
	var payload bus.ExplanationResponsePayload
	if err := env.Decode(&payload); err != nil {
		return err
	}

	_, err := h.client.Respond(ctx, env, bus.EventChatReply, bus.ChatReplyPayload{
		UserID:         payload.UserID,
		ConversationID: payload.ConversationID,
		Reply:          payload.Explanation,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		InResponseTo:   payload.MessageID,
	})
	if err != nil {
		return fmt.Errorf("relay explanation: %w", err)
	}
	return nil
}
