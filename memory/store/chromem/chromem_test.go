package chromem_test

import (
	"context"
	"testing"
	"time"

	"github.com/evermind-ai/evermind/memory"
	"github.com/evermind-ai/evermind/memory/embedder/mock"
	"github.com/evermind-ai/evermind/memory/store/chromem"
)

func addDoc(t *testing.T, store *chromem.Store, family, userID, id, content string, at time.Time) {
	t.Helper()
	embedder := mock.New()
	embedding, err := embedder.Embed(context.Background(), content)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	err = store.Add(context.Background(), family, userID, memory.Document{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  map[string]string{"role": "user"},
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("add %s: %v", id, err)
	}
}

func TestStore_QueryReturnsSimilarDocuments(t *testing.T) {
	ctx := context.Background()
	store, err := chromem.New()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	now := time.Now().UTC()
	addDoc(t, store, memory.FamilyKnowledge, "user-1", "d1", "User likes green tea", now)
	addDoc(t, store, memory.FamilyKnowledge, "user-1", "d2", "User lives in Lisbon", now)

	embedder := mock.New()
	query, err := embedder.Embed(ctx, "User likes green tea")
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}

	docs, err := store.Query(ctx, memory.FamilyKnowledge, "user-1", query, 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 results, got %d", len(docs))
	}
	// The exact-match document scores highest with the deterministic
	// embedder.
	if docs[0].Content != "User likes green tea" {
		t.Errorf("expected exact match first, got %q", docs[0].Content)
	}
	if docs[0].Score < docs[1].Score {
		t.Errorf("results not sorted by score: %f < %f", docs[0].Score, docs[1].Score)
	}
	if docs[0].Metadata["role"] != "user" {
		t.Errorf("metadata lost: %v", docs[0].Metadata)
	}
}

func TestStore_QueryEmptyNamespace(t *testing.T) {
	store, err := chromem.New()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	embedder := mock.New()
	query, _ := embedder.Embed(context.Background(), "anything")
	docs, err := store.Query(context.Background(), memory.FamilyKnowledge, "nobody", query, 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no results, got %d", len(docs))
	}
}

func TestStore_LimitClampedToCollectionSize(t *testing.T) {
	store, err := chromem.New()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	addDoc(t, store, memory.FamilyKnowledge, "user-1", "d1", "only document", time.Now().UTC())

	embedder := mock.New()
	query, _ := embedder.Embed(context.Background(), "only document")
	docs, err := store.Query(context.Background(), memory.FamilyKnowledge, "user-1", query, 10)
	if err != nil {
		t.Fatalf("query with oversized limit: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 result, got %d", len(docs))
	}
}

func TestStore_RecentNewestFirst(t *testing.T) {
	store, err := chromem.New()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	base := time.Now().UTC()
	addDoc(t, store, memory.FamilyInteractions, "user-1", "d1", "first", base)
	addDoc(t, store, memory.FamilyInteractions, "user-1", "d2", "second", base.Add(time.Second))
	addDoc(t, store, memory.FamilyInteractions, "user-1", "d3", "third", base.Add(2*time.Second))

	docs, err := store.Recent(context.Background(), memory.FamilyInteractions, "user-1", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Content != "third" || docs[1].Content != "second" {
		t.Fatalf("wrong order: %q, %q", docs[0].Content, docs[1].Content)
	}
}

func TestStore_PersistenceSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := chromem.New(chromem.WithPersistence(dir))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	base := time.Now().UTC()
	addDoc(t, store, memory.FamilyInteractions, "user-1", "d1", "first turn", base)
	addDoc(t, store, memory.FamilyInteractions, "user-1", "d2", "second turn", base.Add(time.Second))
	addDoc(t, store, memory.FamilyKnowledge, "user-1", "k1", "User likes green tea", base)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := chromem.New(chromem.WithPersistence(dir))
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	docs, err := reopened.Recent(ctx, memory.FamilyInteractions, "user-1", 10)
	if err != nil {
		t.Fatalf("recent after reopen: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 interactions after reopen, got %d", len(docs))
	}
	if docs[0].Content != "second turn" || docs[1].Content != "first turn" {
		t.Fatalf("wrong order after reopen: %q, %q", docs[0].Content, docs[1].Content)
	}
	if docs[0].Metadata["role"] != "user" {
		t.Errorf("metadata lost after reopen: %v", docs[0].Metadata)
	}

	embedder := mock.New()
	query, err := embedder.Embed(ctx, "User likes green tea")
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}
	found, err := reopened.Query(ctx, memory.FamilyKnowledge, "user-1", query, 5)
	if err != nil {
		t.Fatalf("query after reopen: %v", err)
	}
	if len(found) != 1 || found[0].Content != "User likes green tea" {
		t.Fatalf("knowledge not reloaded: %v", found)
	}

	// New documents land in the reloaded collection, not a fresh one.
	addDoc(t, reopened, memory.FamilyInteractions, "user-1", "d3", "third turn", base.Add(2*time.Second))
	docs, err = reopened.Recent(ctx, memory.FamilyInteractions, "user-1", 10)
	if err != nil {
		t.Fatalf("recent after add: %v", err)
	}
	if len(docs) != 3 || docs[0].Content != "third turn" {
		t.Fatalf("append after reopen broken: %v", docs)
	}
}

func TestStore_UserIsolation(t *testing.T) {
	store, err := chromem.New()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	addDoc(t, store, memory.FamilyKnowledge, "user-a", "d1", "private fact", time.Now().UTC())

	docs, err := store.Recent(context.Background(), memory.FamilyKnowledge, "user-b", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(docs) != 0 {
		t.Fatal("documents leaked across users")
	}

	docs, err = store.Recent(context.Background(), memory.FamilyInteractions, "user-a", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(docs) != 0 {
		t.Fatal("documents leaked across families")
	}
}
