// Package httpapi exposes the chat system over HTTP. The gateway does
// not run the pipeline itself; it publishes events to the broker and,
// for chat, waits for the correlated reply.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/agent"
	"github.com/evermind-ai/evermind/bus"
)

// Server is the HTTP gateway in front of the event bus.
type Server struct {
	client       *bus.Client
	logger       *zap.Logger
	replyTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithReplyTimeout bounds how long a chat request waits for the agent's
// reply. Defaults to 30 seconds.
func WithReplyTimeout(d time.Duration) Option {
	return func(s *Server) { s.replyTimeout = d }
}

// New creates the gateway over a connected broker client.
func New(client *bus.Client, opts ...Option) *Server {
	s := &Server{
		client:       client,
		logger:       zap.NewNop(),
		replyTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gateway's route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/feedback", s.handleFeedback)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type chatResponse struct {
	Reply          string `json:"reply"`
	ReplyID        string `json:"reply_id"`
	ConversationID string `json:"conversation_id"`
}

// handleChat publishes the message as a chat.message event and blocks
// until the correlated chat.reply arrives or the timeout passes.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.UserID == "" {
		req.UserID = agent.DefaultUserID
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.replyTimeout)
	defer cancel()

	payload := bus.ChatMessagePayload{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		MessageID:      uuid.NewString(),
	}
	reply, err := s.client.Request(ctx, bus.TopicActionRequests, bus.EventChatMessage,
		payload, bus.EventChatReply, bus.WithUserID(req.UserID))
	if err != nil {
		s.logger.Warn("chat request failed", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "no reply from agent")
		return
	}

	var replyPayload bus.ChatReplyPayload
	if err := reply.Decode(&replyPayload); err != nil {
		writeError(w, http.StatusBadGateway, "malformed reply from agent")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Reply:          replyPayload.Reply,
		ReplyID:        replyPayload.MessageID,
		ConversationID: req.ConversationID,
	})
}

type feedbackRequest struct {
	MessageID      string `json:"message_id"`
	IsHelpful      bool   `json:"is_helpful"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

// handleFeedback publishes a chat.feedback event. Processing is
// asynchronous, so acceptance is all the gateway can promise.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.MessageID == "" {
		writeError(w, http.StatusBadRequest, "message_id is required")
		return
	}

	_, err := s.client.Publish(r.Context(), bus.TopicBusinessFacts, bus.EventChatFeedback,
		bus.FeedbackPayload{
			MessageID:      req.MessageID,
			IsHelpful:      req.IsHelpful,
			UserID:         req.UserID,
			ConversationID: req.ConversationID,
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
		},
		bus.WithUserID(req.UserID))
	if err != nil {
		s.logger.Warn("feedback publish failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "feedback not accepted")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
