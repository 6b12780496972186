// Package chromem implements the vector-store backend on chromem-go, a
// pure Go embedded vector database. It is the local counterpart of the
// pgvector backend.
package chromem

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	chromemgo "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/memory"
)

// Store wraps chromem-go. Each (family, user) pair gets its own collection
// for namespace isolation. chromem has no recency-ordered listing, so the
// store keeps its own insertion log per namespace to serve Recent.
type Store struct {
	db          *chromemgo.DB
	logger      *zap.Logger
	persistPath string
	mu          sync.RWMutex
	collections map[string]*chromemgo.Collection
	recency     map[string][]memory.Document // insertion order, embeddings stripped

	journalMu sync.Mutex
	journal   *os.File
}

// recencyEntry is one line of the on-disk insertion journal. Embeddings are
// stripped before writing; chromem reloads them with the collections.
type recencyEntry struct {
	Namespace string          `json:"namespace"`
	Document  memory.Document `json:"document"`
}

// Option configures the store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithPersistence stores collections under dir so memories survive restarts
// and are shared by processes started against the same data directory
// (sequentially, not concurrently: chromem holds state in process memory,
// so concurrently running processes do not see each other's writes).
func WithPersistence(dir string) Option {
	return func(s *Store) {
		s.persistPath = dir
	}
}

// New creates a store. Without WithPersistence it is purely in-memory.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		logger:      zap.NewNop(),
		collections: make(map[string]*chromemgo.Collection),
		recency:     make(map[string][]memory.Document),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.persistPath == "" {
		s.db = chromemgo.NewDB()
		return s, nil
	}

	if err := os.MkdirAll(s.persistPath, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	db, err := chromemgo.NewPersistentDB(s.persistPath, false)
	if err != nil {
		return nil, fmt.Errorf("open persistent db: %w", err)
	}
	s.db = db

	journal, err := os.OpenFile(filepath.Join(s.persistPath, "recency.jsonl"),
		os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open recency journal: %w", err)
	}
	s.journal = journal

	scanner := bufio.NewScanner(journal)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry recencyEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			s.logger.Warn("skipping corrupt recency entry", zap.Error(err))
			continue
		}
		s.recency[entry.Namespace] = append(s.recency[entry.Namespace], entry.Document)
	}
	if err := scanner.Err(); err != nil {
		journal.Close()
		return nil, fmt.Errorf("read recency journal: %w", err)
	}
	return s, nil
}

func namespaceName(family, userID string) string {
	user := userID
	if user == "" {
		user = "global"
	}
	// chromem collection names must stay within [a-zA-Z0-9_-].
	user = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, user)
	return family + "_" + user
}

func (s *Store) getOrCreateCollection(family, userID string) (*chromemgo.Collection, error) {
	name := namespaceName(family, userID)

	s.mu.RLock()
	col, exists := s.collections[name]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, exists := s.collections[name]; exists {
		return col, nil
	}

	// GetOrCreate so that collections reloaded from disk are picked up
	// instead of clobbered.
	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", name, err)
	}
	s.collections[name] = col
	return col, nil
}

// Add stores a document with its embedding.
func (s *Store) Add(ctx context.Context, family, userID string, doc memory.Document) error {
	col, err := s.getOrCreateCollection(family, userID)
	if err != nil {
		return err
	}

	metadata := map[string]string{
		"created_at": doc.CreatedAt.Format(time.RFC3339Nano),
	}
	for k, v := range doc.Metadata {
		metadata[k] = v
	}

	err = col.AddDocument(ctx, chromemgo.Document{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: doc.Embedding,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	logged := doc
	logged.Embedding = nil
	name := namespaceName(family, userID)
	s.mu.Lock()
	s.recency[name] = append(s.recency[name], logged)
	s.mu.Unlock()

	if s.journal != nil {
		line, err := json.Marshal(recencyEntry{Namespace: name, Document: logged})
		if err == nil {
			s.journalMu.Lock()
			_, err = s.journal.Write(append(line, '\n'))
			s.journalMu.Unlock()
		}
		if err != nil {
			// The document is already in chromem; losing a journal line only
			// degrades Recent ordering after a restart.
			s.logger.Warn("recency journal append failed",
				zap.String("namespace", name), zap.Error(err))
		}
	}

	s.logger.Debug("document stored",
		zap.String("namespace", name),
		zap.String("id", doc.ID))
	return nil
}

// Query retrieves documents by vector similarity, highest first.
func (s *Store) Query(ctx context.Context, family, userID string, embedding []float32, limit int) ([]memory.Document, error) {
	col, err := s.getOrCreateCollection(family, userID)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	docs := make([]memory.Document, 0, len(results))
	for _, result := range results {
		docs = append(docs, documentFromResult(result))
	}
	return docs, nil
}

// Recent returns documents by insertion recency, newest first.
func (s *Store) Recent(ctx context.Context, family, userID string, limit int) ([]memory.Document, error) {
	name := namespaceName(family, userID)

	s.mu.RLock()
	log := s.recency[name]
	if limit > len(log) {
		limit = len(log)
	}
	docs := make([]memory.Document, limit)
	for i := 0; i < limit; i++ {
		docs[i] = log[len(log)-1-i]
	}
	s.mu.RUnlock()

	// Insertion order and timestamps can diverge if callers backdate
	// CreatedAt; timestamps win.
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// Close releases resources. chromem itself flushes on every write, so only
// the recency journal needs closing.
func (s *Store) Close() error {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

func documentFromResult(result chromemgo.Result) memory.Document {
	createdAt, _ := time.Parse(time.RFC3339Nano, result.Metadata["created_at"])

	metadata := make(map[string]string, len(result.Metadata))
	for k, v := range result.Metadata {
		if k == "created_at" {
			continue
		}
		metadata[k] = v
	}

	return memory.Document{
		ID:        result.ID,
		Content:   result.Content,
		Embedding: result.Embedding,
		Metadata:  metadata,
		Score:     float64(result.Similarity),
		CreatedAt: createdAt,
	}
}
