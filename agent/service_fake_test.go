package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/evermind-ai/evermind/core"
	"github.com/evermind-ai/evermind/llm"
	"github.com/evermind-ai/evermind/memory"
)

// fakeService is an in-memory memory.Service for pipeline tests. Keyed
// storage is a flat map of JSON blobs; episodic and semantic memory are
// per-user slices in insertion order. Search is substring match, which is
// close enough to relevance ranking for these tests.
type fakeService struct {
	mu        sync.Mutex
	records   map[string][]byte
	turns     map[string][]core.ConversationTurn
	knowledge map[string][]core.KnowledgeItem

	kvErr     error // injected failure for Store/Retrieve
	searchErr error // injected failure for SearchKnowledge
}

var _ memory.Service = (*fakeService)(nil)

func newFakeService() *fakeService {
	return &fakeService{
		records:   make(map[string][]byte),
		turns:     make(map[string][]core.ConversationTurn),
		knowledge: make(map[string][]core.KnowledgeItem),
	}
}

func recordKey(scopeID, tenantID, key string) string {
	return scopeID + "/" + tenantID + "/" + key
}

func (f *fakeService) Store(ctx context.Context, scopeID, key string, value any, tenantID, userID string) error {
	if f.kvErr != nil {
		return f.kvErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[recordKey(scopeID, tenantID, key)] = raw
	return nil
}

func (f *fakeService) Retrieve(ctx context.Context, scopeID, key string, tenantID, userID string, out any) (bool, error) {
	if f.kvErr != nil {
		return false, f.kvErr
	}
	f.mu.Lock()
	raw, ok := f.records[recordKey(scopeID, tenantID, key)]
	f.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (f *fakeService) LogInteraction(ctx context.Context, agentID string, role core.Role, content, userID string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta := map[string]string{}
	for k, v := range metadata {
		meta[k] = v
	}
	f.turns[userID] = append(f.turns[userID], core.ConversationTurn{
		Role:     role,
		Content:  content,
		Metadata: meta,
	})
	return nil
}

func (f *fakeService) SearchInteractions(ctx context.Context, agentID, query, userID string, limit int) ([]core.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	turns := f.turns[userID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]core.ConversationTurn(nil), turns...), nil
}

func (f *fakeService) GetRecentHistory(ctx context.Context, agentID, userID string, limit int) ([]core.ConversationTurn, error) {
	return f.SearchInteractions(ctx, agentID, "", userID, limit)
}

func (f *fakeService) SearchKnowledge(ctx context.Context, query, userID string, limit int) ([]core.KnowledgeItem, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.knowledge[userID]
	if len(items) > limit {
		items = items[:limit]
	}
	return append([]core.KnowledgeItem(nil), items...), nil
}

func (f *fakeService) StoreKnowledge(ctx context.Context, content, userID string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta := map[string]string{}
	for k, v := range metadata {
		meta[k] = v
	}
	f.knowledge[userID] = append(f.knowledge[userID], core.KnowledgeItem{
		Content:  content,
		Score:    1.0,
		Metadata: meta,
	})
	return nil
}

// seedKnowledge inserts an item with an explicit score.
func (f *fakeService) seedKnowledge(userID, content string, score float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.knowledge[userID] = append(f.knowledge[userID], core.KnowledgeItem{Content: content, Score: score})
}

// lastTurn returns the most recent episodic turn for the user.
func (f *fakeService) lastTurn(userID string) (core.ConversationTurn, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	turns := f.turns[userID]
	if len(turns) == 0 {
		return core.ConversationTurn{}, false
	}
	return turns[len(turns)-1], true
}

var errScripted = errors.New("scripted failure")

// scriptedGenerator answers fact-extraction prompts with facts and every
// other prompt with reply. A nil-safe zero value errors on everything.
type scriptedGenerator struct {
	facts string
	reply string
	err   error
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if strings.HasPrefix(prompt, "Analyze the user message") {
		return g.facts, nil
	}
	return g.reply, nil
}

var _ llm.Generator = (*scriptedGenerator)(nil)

// failEveryGenerator always fails, for degraded-mode tests.
func failEveryGenerator() llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, prompt string, temperature float64) (string, error) {
		return "", fmt.Errorf("provider down: %w", errScripted)
	})
}
