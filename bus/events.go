package bus

// Event types exchanged by the chat workers.
const (
	EventChatMessage         = "chat.message"
	EventChatReply           = "chat.reply"
	EventChatFeedback        = "chat.feedback"
	EventExplanationRequest  = "explanation.request"
	EventExplanationResponse = "explanation.response"
	EventKnowledgeInject     = "knowledge.inject"
)

// ChatMessagePayload is the payload of chat.message events.
type ChatMessagePayload struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
	MessageID      string `json:"message_id"`
}

// ChatReplyPayload is the payload of chat.reply events. MessageID
// identifies the reply itself so feedback can reference it.
type ChatReplyPayload struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
	Timestamp      string `json:"timestamp"`
	InResponseTo   string `json:"in_response_to"`
	MessageID      string `json:"message_id,omitempty"`
}

// FeedbackPayload is the payload of chat.feedback events.
type FeedbackPayload struct {
	MessageID      string `json:"message_id"`
	IsHelpful      bool   `json:"is_helpful"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// ExplanationRequestPayload is the payload of explanation.request events.
type ExplanationRequestPayload struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Timestamp      string `json:"timestamp"`
}

// ExplanationResponsePayload is the payload of explanation.response events.
type ExplanationResponsePayload struct {
	Explanation    string `json:"explanation"`
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Timestamp      string `json:"timestamp"`
}

// KnowledgeInjectPayload is the payload of knowledge.inject events.
type KnowledgeInjectPayload struct {
	Content   string            `json:"content"`
	UserID    string            `json:"user_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Definition describes one event for registration and documentation.
type Definition struct {
	EventName   string `json:"event_name"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
}

// Catalog lists every event this system consumes or produces.
func Catalog() []Definition {
	return []Definition{
		{EventChatMessage, TopicActionRequests, "A chat message from a user that needs to be processed by the chat agent"},
		{EventChatReply, TopicActionResults, "A reply from the chat agent in response to a user message"},
		{EventChatFeedback, TopicBusinessFacts, "A user rating of a previous reply"},
		{EventExplanationRequest, TopicActionRequests, "A request to explain the reasoning behind a previous reply"},
		{EventExplanationResponse, TopicActionResults, "The reconstructed explanation for a previous reply"},
		{EventKnowledgeInject, TopicBusinessFacts, "A fact to insert directly into semantic memory"},
	}
}
