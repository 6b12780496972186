package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/agent"
	"github.com/evermind-ai/evermind/bus"
	"github.com/evermind-ai/evermind/core"
)

// NewFeedback binds the feedback and explanation operations to the
// broker: chat.feedback events penalize the knowledge a disliked reply
// relied on, and explanation.request events answer with the reply's
// stored reasoning trace.
func NewFeedback(client *bus.Client, pipeline *agent.Pipeline, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &feedbackHandlers{client: client, pipeline: pipeline, logger: logger}

	client.On(bus.EventChatFeedback, bus.TopicBusinessFacts, h.onFeedback)
	client.On(bus.EventExplanationRequest, bus.TopicActionRequests, h.onExplanationRequest)

	caps := []bus.Definition{
		{EventName: bus.EventChatFeedback, Topic: bus.TopicBusinessFacts, Description: "A user rating of a previous reply"},
		{EventName: bus.EventExplanationRequest, Topic: bus.TopicActionRequests, Description: "A request to explain the reasoning behind a previous reply"},
	}
	return New("feedback-worker", "Feedback scoring and reasoning explanations", client, caps, logger)
}

type feedbackHandlers struct {
	client   *bus.Client
	pipeline *agent.Pipeline
	logger   *zap.Logger
}

func (h *feedbackHandlers) onFeedback(ctx context.Context, env *bus.Envelope) error {
	var payload bus.FeedbackPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}

	record := core.FeedbackRecord{
		MessageID: payload.MessageID,
		IsHelpful: payload.IsHelpful,
		UserID:    payload.UserID,
	}
	if ts, err := time.Parse(time.RFC3339, payload.Timestamp); err == nil {
		record.Timestamp = ts
	}

	if err := h.pipeline.HandleFeedback(ctx, record, payload.ConversationID); err != nil {
		return fmt.Errorf("process feedback: %w", err)
	}
	h.logger.Info("feedback processed",
		zap.String("message_id", payload.MessageID),
		zap.Bool("is_helpful", payload.IsHelpful))
	return nil
}

func (h *feedbackHandlers) onExplanationRequest(ctx context.Context, env *bus.Envelope) error {
	var payload bus.ExplanationRequestPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}

	explanation := h.pipeline.HandleExplanation(ctx, payload.ConversationID, payload.UserID)

	_, err := h.client.Respond(ctx, env, bus.EventExplanationResponse, bus.ExplanationResponsePayload{
		Explanation:    explanation,
		MessageID:      payload.MessageID,
		ConversationID: payload.ConversationID,
		UserID:         payload.UserID,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("publish explanation: %w", err)
	}
	h.logger.Info("explanation published",
		zap.String("conversation_id", payload.ConversationID))
	return nil
}
