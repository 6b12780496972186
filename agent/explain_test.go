package agent_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermind-ai/evermind/agent"
	"github.com/evermind-ai/evermind/core"
)

func newExplainer(svc *fakeService) *agent.Explainer {
	traces := agent.NewTraceStore(svc)
	return agent.NewExplainer(svc, traces, agent.DefaultAgentID, agent.DefaultLimits(), nil)
}

func TestExplain_UsesStoredTrace(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	explainer := newExplainer(svc)

	const user = "user-1"
	require.NoError(t, agent.NewTraceStore(svc).Save(ctx, user, core.Trace{
		ReplyID: "trace-1",
		ConversationHistory: []core.ConversationTurn{
			{Role: core.RoleUser, Content: "What do I like to drink?"},
		},
		KnowledgeResults: []core.KnowledgeItem{
			{Content: "User likes green tea", Score: 0.9},
		},
		PromptUsed:  "You are a helpful assistant.\n\nINSTRUCTIONS: be brief",
		ReplyText:   "You like green tea.",
		UserMessage: "What do I like to drink?",
	}))

	require.NoError(t, svc.LogInteraction(ctx, agent.DefaultAgentID, core.RoleAssistant,
		"You like green tea.", user, map[string]string{
			"conversation_id": "conv-1",
			"trace_id":        "trace-1",
		}))

	out := explainer.Explain(ctx, "conv-1", user)
	assert.Contains(t, out, "## 🔎 Reasoning Explanation")
	assert.Contains(t, out, "### 🧠 Episodic Memories (Context)")
	assert.Contains(t, out, "### 📚 Semantic Knowledge (Facts)")
	assert.Contains(t, out, "### 📝 Prompt Composition")
	assert.Contains(t, out, `"User likes green tea"`)
	assert.Contains(t, out, "You are a helpful assistant.")
	assert.NotContains(t, out, "INSTRUCTIONS:", "instructions must be cut from the preview")
	assert.Contains(t, out, "[...Instructions...]")
}

func TestExplain_ReconstructsWithoutTrace(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	explainer := newExplainer(svc)

	const user = "user-1"
	svc.seedKnowledge(user, "User's cat is named Miso", 0.7)
	require.NoError(t, svc.LogInteraction(ctx, agent.DefaultAgentID, core.RoleUser,
		"What's my cat called?", user, map[string]string{"conversation_id": "conv-2"}))
	require.NoError(t, svc.LogInteraction(ctx, agent.DefaultAgentID, core.RoleAssistant,
		"Your cat is Miso.", user, map[string]string{"conversation_id": "conv-2"}))

	out := explainer.Explain(ctx, "conv-2", user)
	assert.Contains(t, out, "## 🔎 Reasoning Explanation")
	assert.Contains(t, out, `"User's cat is named Miso"`)
	assert.Contains(t, out, "LLM prompt combining episodic and semantic memory (RAG pattern)")
}

func TestExplain_NothingToExplain(t *testing.T) {
	svc := newFakeService()
	explainer := newExplainer(svc)

	out := explainer.Explain(context.Background(), "conv-3", "user-1")
	assert.Equal(t, agent.NothingToExplain, out)
}

func TestExplain_StorageFailureFallsBack(t *testing.T) {
	svc := newFakeService()
	svc.kvErr = core.ErrStorageUnavailable
	explainer := newExplainer(svc)

	// Recent history works, keyed storage does not: the assistant turn
	// names a trace that cannot load, so the explainer degrades through
	// reconstruction.
	ctx := context.Background()
	require.NoError(t, svc.LogInteraction(ctx, agent.DefaultAgentID, core.RoleUser,
		"hello", "user-1", map[string]string{"conversation_id": "conv-4"}))
	require.NoError(t, svc.LogInteraction(ctx, agent.DefaultAgentID, core.RoleAssistant,
		"hi", "user-1", map[string]string{"conversation_id": "conv-4", "trace_id": "gone"}))

	out := explainer.Explain(ctx, "conv-4", "user-1")
	assert.Contains(t, out, "## 🔎 Reasoning Explanation")
}

func TestExplain_MultibyteContentStaysValid(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	explainer := newExplainer(svc)

	long := strings.Repeat("ユーザーは緑茶が好きです。", 20)
	require.NoError(t, svc.LogInteraction(ctx, agent.DefaultAgentID, core.RoleUser, long, "user-1", nil))
	require.NoError(t, svc.LogInteraction(ctx, agent.DefaultAgentID, core.RoleAssistant, "わかりました", "user-1", nil))

	out := explainer.Explain(ctx, "conv-6", "user-1")
	assert.True(t, utf8.ValidString(out), "explanation must be valid UTF-8 after cutting long turns")
	assert.NotContains(t, out, long)
}

func TestExplain_TruncatesLongTurns(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	explainer := newExplainer(svc)

	long := ""
	for i := 0; i < 30; i++ {
		long += "very long content "
	}
	require.NoError(t, svc.LogInteraction(ctx, agent.DefaultAgentID, core.RoleUser, long, "user-1", nil))
	require.NoError(t, svc.LogInteraction(ctx, agent.DefaultAgentID, core.RoleAssistant, "ok", "user-1", nil))

	out := explainer.Explain(ctx, "conv-5", "user-1")
	assert.NotContains(t, out, long, "turn content must be cut at 80 characters")
}
