// Package pgvector implements the vector-store backend on PostgreSQL with
// the pgvector extension. It is the production counterpart of the embedded
// chromem backend.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/evermind-ai/evermind/memory"
)

// Store implements memory.VectorStore on a single documents table.
// Cosine distance drives similarity search; created_at drives recency.
type Store struct {
	pool       *pgxpool.Pool
	dimensions int
}

// New connects to the database at databaseURL. dimensions must match the
// embedder in use; the schema is created on first use via InitSchema.
func New(ctx context.Context, databaseURL string, dimensions int) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, dimensions: dimensions}, nil
}

// InitSchema creates the documents table and indexes if absent.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS documents (
			id         TEXT PRIMARY KEY,
			family     TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			content    TEXT NOT NULL,
			embedding  vector(%d),
			metadata   JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_documents_namespace
			ON documents (family, user_id, created_at DESC);
	`, s.dimensions)

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// Add stores a document with its embedding.
func (s *Store) Add(ctx context.Context, family, userID string, doc memory.Document) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO documents (id, family, user_id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.pool.Exec(ctx, query,
		doc.ID, family, userID, doc.Content,
		pgv.NewVector(doc.Embedding), metadata, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Query retrieves documents by cosine similarity, highest first.
func (s *Store) Query(ctx context.Context, family, userID string, embedding []float32, limit int) ([]memory.Document, error) {
	query := `
		SELECT id, content, metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM documents
		WHERE family = $2 AND user_id = $3 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $4
	`
	rows, err := s.pool.Query(ctx, query, pgv.NewVector(embedding), family, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []memory.Document
	for rows.Next() {
		var (
			doc      memory.Document
			metadata []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metadata, &doc.CreatedAt, &doc.Score); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// Recent returns documents by creation time, newest first.
func (s *Store) Recent(ctx context.Context, family, userID string, limit int) ([]memory.Document, error) {
	query := `
		SELECT id, content, metadata, created_at
		FROM documents
		WHERE family = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, family, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent documents: %w", err)
	}
	defer rows.Close()

	var docs []memory.Document
	for rows.Next() {
		var (
			doc      memory.Document
			metadata []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metadata, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ memory.VectorStore = (*Store)(nil)
