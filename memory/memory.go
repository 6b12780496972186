package memory

import (
	"context"
	"time"

	"github.com/evermind-ai/evermind/core"
)

// Service is the capability surface the agent core consumes. Implementations
// decide durability and indexing; the core only requires the semantics below.
//
// All operations are scoped by user. Failures should be reported as errors
// wrapping the core taxonomy (core.ErrStorageUnavailable etc.) so callers
// can choose between degrading and rejecting.
type Service interface {
	// Store writes a value under (scope, key) for a tenant/user pair.
	// Values are JSON-serialized by the implementation.
	Store(ctx context.Context, scopeID, key string, value any, tenantID, userID string) error

	// Retrieve reads the value stored under (scope, key) into out, which
	// must be a pointer. The second return is false when no record exists.
	Retrieve(ctx context.Context, scopeID, key string, tenantID, userID string, out any) (bool, error)

	// LogInteraction appends a conversation turn to episodic memory.
	LogInteraction(ctx context.Context, agentID string, role core.Role, content, userID string, metadata map[string]string) error

	// SearchInteractions returns turns ranked by relevance to query.
	SearchInteractions(ctx context.Context, agentID, query, userID string, limit int) ([]core.ConversationTurn, error)

	// GetRecentHistory returns turns ranked by recency, oldest first.
	GetRecentHistory(ctx context.Context, agentID, userID string, limit int) ([]core.ConversationTurn, error)

	// SearchKnowledge returns facts ranked by relevance to query.
	SearchKnowledge(ctx context.Context, query, userID string, limit int) ([]core.KnowledgeItem, error)

	// StoreKnowledge persists a new fact in semantic memory.
	StoreKnowledge(ctx context.Context, content, userID string, metadata map[string]string) error
}

// Document is the storage-level unit a VectorStore holds. Both
// conversation turns and knowledge facts are stored as documents; the
// Family metadata key distinguishes them.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
	Score     float64
	CreatedAt time.Time
}

// Namespace families within a VectorStore. Each user gets one namespace
// per family so interactions and knowledge never collide.
const (
	FamilyInteractions = "interactions"
	FamilyKnowledge    = "knowledge"
)

// VectorStore is the similarity-search backend interface.
// Implementations: chromem (embedded, local) and pgvector (PostgreSQL).
type VectorStore interface {
	// Add stores a document with its embedding under a family/user namespace.
	Add(ctx context.Context, family, userID string, doc Document) error

	// Query returns up to limit documents ranked by similarity to the
	// embedding, highest first.
	Query(ctx context.Context, family, userID string, embedding []float32, limit int) ([]Document, error)

	// Recent returns up to limit documents ranked by insertion recency,
	// newest first.
	Recent(ctx context.Context, family, userID string, limit int) ([]Document, error)

	// Close releases resources.
	Close() error
}

// KeyValue is the durable keyed-storage backend used for traces, penalty
// records, and feedback records. Values are opaque JSON.
type KeyValue interface {
	Set(ctx context.Context, scopeID, tenantID, key string, value []byte) error

	// Get returns the stored bytes, or found=false when absent.
	Get(ctx context.Context, scopeID, tenantID, key string) (value []byte, found bool, err error)

	Close() error
}

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
