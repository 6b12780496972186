// Package bus provides the event transport: the envelope format, the chat
// event catalog, and a websocket client for the broker. Events are JSON
// envelopes routed by topic and event type, correlated across
// request/response pairs by a shared correlation identifier.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evermind-ai/evermind/core"
)

// Topics. Requests flow on ActionRequests, their results on ActionResults,
// and domain facts (feedback, knowledge injection) on BusinessFacts.
const (
	TopicActionRequests = "action-requests"
	TopicActionResults  = "action-results"
	TopicBusinessFacts  = "business-facts"
)

// Envelope is the wire frame for one event.
type Envelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Topic         string          `json:"topic"`
	Source        string          `json:"source,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	TenantID      string          `json:"tenant_id,omitempty"`
	ResponseEvent string          `json:"response_event,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope creates an envelope with a fresh id and timestamp, carrying
// payload as JSON.
func NewEnvelope(topic, eventType, source string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Topic:     topic,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// Decode unmarshals the envelope payload into out, reporting malformed
// payloads with the core taxonomy.
func (e *Envelope) Decode(out any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload: %w", e.Type, core.ErrMalformedInput)
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("%s: %v: %w", e.Type, err, core.ErrMalformedInput)
	}
	return nil
}
