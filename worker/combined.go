package worker

import (
	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/agent"
	"github.com/evermind-ai/evermind/bus"
)

// NewCombined binds the chat, feedback, and knowledge-injection operations
// to the broker in a single process. Process-local vector backends like
// chromem cannot share memory across processes, so this is the topology for
// single-host deployments: one pipeline, one store, every event type.
//
// Explanations are answered inline (there is no separate worker to delegate
// to), and background fact mining of chat.message is skipped because the
// reply flow already extracts facts on the same pipeline.
func NewCombined(client *bus.Client, pipeline *agent.Pipeline, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}

	chat := &chatHandlers{client: client, pipeline: pipeline, logger: logger}
	feedback := &feedbackHandlers{client: client, pipeline: pipeline, logger: logger}
	knowledge := &knowledgeHandlers{pipeline: pipeline, logger: logger}

	client.On(bus.EventChatMessage, bus.TopicActionRequests, chat.onChatMessage)
	client.On(bus.EventChatFeedback, bus.TopicBusinessFacts, feedback.onFeedback)
	client.On(bus.EventExplanationRequest, bus.TopicActionRequests, feedback.onExplanationRequest)
	client.On(bus.EventKnowledgeInject, bus.TopicBusinessFacts, knowledge.onInject)

	caps := []bus.Definition{
		{EventName: bus.EventChatMessage, Topic: bus.TopicActionRequests, Description: "A chat message from a user that needs to be processed by the chat agent"},
		{EventName: bus.EventChatFeedback, Topic: bus.TopicBusinessFacts, Description: "A user rating of a previous reply"},
		{EventName: bus.EventExplanationRequest, Topic: bus.TopicActionRequests, Description: "A request to explain the reasoning behind a previous reply"},
		{EventName: bus.EventKnowledgeInject, Topic: bus.TopicBusinessFacts, Description: "A fact to insert directly into semantic memory"},
	}
	return New("combined-worker", "Chat, feedback, and knowledge operations in one process", client, caps, logger)
}
