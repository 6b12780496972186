package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler processes one inbound envelope. Handlers run sequentially per
// connection; a handler error is logged, not propagated to the broker.
type Handler func(ctx context.Context, env *Envelope) error

// frame is the websocket wire format between client and broker.
type frame struct {
	Action   string    `json:"action"` // "subscribe" | "publish" | "event"
	Topics   []string  `json:"topics,omitempty"`
	Envelope *Envelope `json:"envelope,omitempty"`
}

type handlerKey struct {
	eventType string
	topic     string
}

// Client is a websocket connection to the event broker. It dispatches
// inbound envelopes to registered handlers and matches correlated replies
// for Request callers.
type Client struct {
	brokerURL string
	source    string
	logger    *zap.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu       sync.RWMutex
	handlers map[handlerKey][]Handler
	pending  map[string]pendingReply // correlation id -> awaited reply
}

type pendingReply struct {
	replyType string
	ch        chan *Envelope
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger. Defaults to a no-op logger.
func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the broker at brokerURL. source tags
// every published envelope with the publishing component's name.
func NewClient(brokerURL, source string, opts ...ClientOption) *Client {
	c := &Client{
		brokerURL: brokerURL,
		source:    source,
		logger:    zap.NewNop(),
		handlers:  make(map[handlerKey][]Handler),
		pending:   make(map[string]pendingReply),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// On registers a handler for an event type on a topic. Must be called
// before Connect.
func (c *Client) On(eventType, topic string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := handlerKey{eventType: eventType, topic: topic}
	c.handlers[key] = append(c.handlers[key], h)
}

// Connect dials the broker and subscribes to every topic a handler was
// registered for, plus extraTopics.
func (c *Client) Connect(ctx context.Context, extraTopics ...string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.brokerURL, nil)
	if err != nil {
		return fmt.Errorf("dial broker %s: %w", c.brokerURL, err)
	}
	c.conn = conn

	topics := map[string]struct{}{}
	c.mu.RLock()
	for key := range c.handlers {
		topics[key.topic] = struct{}{}
	}
	c.mu.RUnlock()
	for _, t := range extraTopics {
		topics[t] = struct{}{}
	}

	subscribed := make([]string, 0, len(topics))
	for t := range topics {
		subscribed = append(subscribed, t)
	}
	if err := c.writeFrame(frame{Action: "subscribe", Topics: subscribed}); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}

	c.logger.Info("connected to broker",
		zap.String("broker_url", c.brokerURL),
		zap.Strings("topics", subscribed))
	return nil
}

// PublishOption decorates an outgoing envelope.
type PublishOption func(*Envelope)

// WithCorrelationID carries the correlation id of the originating request.
func WithCorrelationID(id string) PublishOption {
	return func(e *Envelope) { e.CorrelationID = id }
}

// WithUserID scopes the envelope to a user.
func WithUserID(id string) PublishOption {
	return func(e *Envelope) { e.UserID = id }
}

// WithTenantID scopes the envelope to a tenant.
func WithTenantID(id string) PublishOption {
	return func(e *Envelope) { e.TenantID = id }
}

// WithResponseEvent names the event type the consumer should reply with.
func WithResponseEvent(eventType string) PublishOption {
	return func(e *Envelope) { e.ResponseEvent = eventType }
}

// Publish sends an event to the broker and returns the envelope as sent.
func (c *Client) Publish(ctx context.Context, topic, eventType string, payload any, opts ...PublishOption) (*Envelope, error) {
	env, err := NewEnvelope(topic, eventType, c.source, payload)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(env)
	}
	if env.CorrelationID == "" {
		env.CorrelationID = env.ID
	}
	if err := c.writeFrame(frame{Action: "publish", Envelope: env}); err != nil {
		return nil, fmt.Errorf("publish %s: %w", eventType, err)
	}
	return env, nil
}

// Respond publishes a reply to inReplyTo, carrying its correlation id and
// user/tenant scope. The reply goes to the results topic under the event
// type the requester asked for, defaulting to eventType.
func (c *Client) Respond(ctx context.Context, inReplyTo *Envelope, eventType string, payload any) (*Envelope, error) {
	if inReplyTo.ResponseEvent != "" {
		eventType = inReplyTo.ResponseEvent
	}
	return c.Publish(ctx, TopicActionResults, eventType, payload,
		WithCorrelationID(inReplyTo.CorrelationID),
		WithUserID(inReplyTo.UserID),
		WithTenantID(inReplyTo.TenantID))
}

// Request publishes an event and waits for a correlated reply of the given
// type, or until ctx expires.
func (c *Client) Request(ctx context.Context, topic, eventType string, payload any, replyType string, opts ...PublishOption) (*Envelope, error) {
	env, err := NewEnvelope(topic, eventType, c.source, payload)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(env)
	}
	if env.CorrelationID == "" {
		env.CorrelationID = env.ID
	}
	env.ResponseEvent = replyType

	ch := make(chan *Envelope, 1)
	c.mu.Lock()
	c.pending[env.CorrelationID] = pendingReply{replyType: replyType, ch: ch}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, env.CorrelationID)
		c.mu.Unlock()
	}()

	if err := c.writeFrame(frame{Action: "publish", Envelope: env}); err != nil {
		return nil, fmt.Errorf("publish %s: %w", eventType, err)
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("await %s: %w", replyType, ctx.Err())
	}
}

// Listen reads envelopes until ctx is done or the connection fails.
func (c *Client) Listen(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("listen: not connected")
	}

	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.logger.Warn("unreadable frame dropped", zap.Error(err))
			continue
		}
		if f.Action != "event" || f.Envelope == nil {
			continue
		}
		c.dispatch(ctx, f.Envelope)
	}
}

func (c *Client) dispatch(ctx context.Context, env *Envelope) {
	// Correlated replies awaited by Request take priority over handlers.
	// Intermediate events in a choreography share the correlation id, so
	// the awaited event type must match too.
	if env.CorrelationID != "" {
		c.mu.RLock()
		p, waiting := c.pending[env.CorrelationID]
		c.mu.RUnlock()
		if waiting && (p.replyType == "" || p.replyType == env.Type) {
			select {
			case p.ch <- env:
			default:
			}
			return
		}
	}

	c.mu.RLock()
	handlers := c.handlers[handlerKey{eventType: env.Type, topic: env.Topic}]
	c.mu.RUnlock()

	for _, h := range handlers {
		start := time.Now()
		if err := h(ctx, env); err != nil {
			c.logger.Warn("handler failed",
				zap.String("event_type", env.Type),
				zap.String("event_id", env.ID),
				zap.Error(err))
		}
		c.logger.Debug("event handled",
			zap.String("event_type", env.Type),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (c *Client) writeFrame(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteJSON(f)
}

// Close closes the broker connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
