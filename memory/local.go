package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/core"
)

// Local is the in-process Service implementation: a VectorStore for
// episodic/semantic recall, a KeyValue for traces and penalties, and an
// Embedder for query/content vectors.
type Local struct {
	vectors  VectorStore
	kv       KeyValue
	embedder Embedder
	logger   *zap.Logger
}

// LocalOption configures a Local service.
type LocalOption func(*Local)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) LocalOption {
	return func(s *Local) {
		s.logger = l
	}
}

// NewLocal creates a Service backed by the given stores and embedder.
func NewLocal(vectors VectorStore, kv KeyValue, embedder Embedder, opts ...LocalOption) *Local {
	s := &Local{
		vectors:  vectors,
		kv:       kv,
		embedder: embedder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store writes a JSON-serialized value under (scope, key).
func (s *Local) Store(ctx context.Context, scopeID, key string, value any, tenantID, userID string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s/%s: %w", scopeID, key, err)
	}
	if err := s.kv.Set(ctx, scopeID, tenantID, key, raw); err != nil {
		return fmt.Errorf("store %s/%s: %w (%w)", scopeID, key, err, core.ErrStorageUnavailable)
	}
	return nil
}

// Retrieve reads the value under (scope, key) into out.
func (s *Local) Retrieve(ctx context.Context, scopeID, key string, tenantID, userID string, out any) (bool, error) {
	raw, found, err := s.kv.Get(ctx, scopeID, tenantID, key)
	if err != nil {
		return false, fmt.Errorf("retrieve %s/%s: %w (%w)", scopeID, key, err, core.ErrStorageUnavailable)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", scopeID, key, err)
	}
	return true, nil
}

// LogInteraction appends a conversation turn to episodic memory.
func (s *Local) LogInteraction(ctx context.Context, agentID string, role core.Role, content, userID string, metadata map[string]string) error {
	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed interaction: %w", err)
	}

	meta := map[string]string{
		"agent_id": agentID,
		"role":     string(role),
	}
	for k, v := range metadata {
		meta[k] = v
	}

	doc := Document{
		ID:        uuid.NewString(),
		Content:   content,
		Embedding: embedding,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.vectors.Add(ctx, FamilyInteractions, userID, doc); err != nil {
		return fmt.Errorf("log interaction: %w (%w)", err, core.ErrStorageUnavailable)
	}
	s.logger.Debug("interaction logged",
		zap.String("agent_id", agentID),
		zap.String("role", string(role)),
		zap.String("user_id", userID))
	return nil
}

// SearchInteractions returns turns ranked by relevance to query.
func (s *Local) SearchInteractions(ctx context.Context, agentID, query, userID string, limit int) ([]core.ConversationTurn, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	docs, err := s.vectors.Query(ctx, FamilyInteractions, userID, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("search interactions: %w (%w)", err, core.ErrStorageUnavailable)
	}
	return turnsFromDocuments(docs), nil
}

// GetRecentHistory returns turns ranked by recency, oldest first, so they
// read top to bottom as a transcript.
func (s *Local) GetRecentHistory(ctx context.Context, agentID, userID string, limit int) ([]core.ConversationTurn, error) {
	docs, err := s.vectors.Recent(ctx, FamilyInteractions, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w (%w)", err, core.ErrStorageUnavailable)
	}
	turns := turnsFromDocuments(docs)
	// Recent returns newest first; a transcript reads oldest first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// SearchKnowledge returns facts ranked by relevance to query.
func (s *Local) SearchKnowledge(ctx context.Context, query, userID string, limit int) ([]core.KnowledgeItem, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	docs, err := s.vectors.Query(ctx, FamilyKnowledge, userID, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w (%w)", err, core.ErrStorageUnavailable)
	}
	items := make([]core.KnowledgeItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, core.KnowledgeItem{
			Content:  doc.Content,
			Score:    doc.Score,
			Metadata: doc.Metadata,
		})
	}
	return items, nil
}

// StoreKnowledge persists a new fact in semantic memory.
func (s *Local) StoreKnowledge(ctx context.Context, content, userID string, metadata map[string]string) error {
	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed fact: %w", err)
	}
	doc := Document{
		ID:        uuid.NewString(),
		Content:   content,
		Embedding: embedding,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.vectors.Add(ctx, FamilyKnowledge, userID, doc); err != nil {
		return fmt.Errorf("store knowledge: %w (%w)", err, core.ErrStorageUnavailable)
	}
	s.logger.Debug("knowledge stored", zap.String("user_id", userID), zap.Int("content_len", len(content)))
	return nil
}

// turnsFromDocuments is the single normalization point from storage-shaped
// documents to canonical conversation turns.
func turnsFromDocuments(docs []Document) []core.ConversationTurn {
	turns := make([]core.ConversationTurn, 0, len(docs))
	for _, doc := range docs {
		role := core.Role(doc.Metadata["role"])
		if role == "" {
			role = core.RoleUser
		}
		turns = append(turns, core.ConversationTurn{
			Role:      role,
			Content:   doc.Content,
			Timestamp: doc.CreatedAt,
			Score:     doc.Score,
			Metadata:  doc.Metadata,
		})
	}
	return turns
}
