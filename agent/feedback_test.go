package agent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermind-ai/evermind/agent"
	"github.com/evermind-ai/evermind/core"
)

func newFeedbackProcessor(svc *fakeService) (*agent.FeedbackProcessor, *agent.PenaltyLedger) {
	ledger := agent.NewPenaltyLedger(svc, 0.1)
	traces := agent.NewTraceStore(svc)
	return agent.NewFeedbackProcessor(svc, ledger, traces, agent.DefaultAgentID, nil), ledger
}

func TestFeedback_NegativePenalizesKnowledge(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	processor, ledger := newFeedbackProcessor(svc)

	record := core.FeedbackRecord{
		MessageID:     "reply-1",
		IsHelpful:     false,
		UserID:        "user-1",
		KnowledgeUsed: []string{"fact A", "fact B", "fact A"},
		Timestamp:     time.Now().UTC(),
	}
	require.NoError(t, processor.Process(ctx, record, "conv-1"))

	for _, content := range []string{"fact A", "fact B"} {
		penalty, err := ledger.Penalty(ctx, "user-1", content)
		require.NoError(t, err)
		assert.InDelta(t, 0.1, penalty, 1e-9, "duplicate citations must count once: %s", content)
	}
}

func TestFeedback_NegativeLogsCorrectionTurn(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	processor, _ := newFeedbackProcessor(svc)

	record := core.FeedbackRecord{MessageID: "reply-7", IsHelpful: false, UserID: "user-1"}
	require.NoError(t, processor.Process(ctx, record, "conv-9"))

	turn, ok := svc.lastTurn("user-1")
	require.True(t, ok, "a corrective turn must be appended")
	assert.Equal(t, core.RoleSystem, turn.Role)
	assert.Contains(t, turn.Content, "msg:reply-7")
	assert.Equal(t, "feedback_correction", turn.Metadata["type"])
	assert.Equal(t, "reply-7", turn.Metadata["in_response_to"])
	assert.Equal(t, "conv-9", turn.Metadata["conversation_id"])
}

func TestFeedback_PositiveIsRecordOnly(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	processor, ledger := newFeedbackProcessor(svc)

	record := core.FeedbackRecord{
		MessageID:     "reply-2",
		IsHelpful:     true,
		UserID:        "user-1",
		KnowledgeUsed: []string{"fact A"},
	}
	require.NoError(t, processor.Process(ctx, record, ""))

	penalty, err := ledger.Penalty(ctx, "user-1", "fact A")
	require.NoError(t, err)
	assert.Zero(t, penalty, "positive feedback must not penalize")

	_, ok := svc.lastTurn("user-1")
	assert.False(t, ok, "positive feedback must not log a correction")
}

func TestFeedback_KnowledgeDerivedFromTrace(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	processor, ledger := newFeedbackProcessor(svc)

	traces := agent.NewTraceStore(svc)
	require.NoError(t, traces.Save(ctx, "user-1", core.Trace{
		ReplyID: "reply-3",
		KnowledgeResults: []core.KnowledgeItem{
			{Content: "traced fact", Score: 0.8},
		},
	}))

	record := core.FeedbackRecord{MessageID: "reply-3", IsHelpful: false, UserID: "user-1"}
	require.NoError(t, processor.Process(ctx, record, ""))

	penalty, err := ledger.Penalty(ctx, "user-1", "traced fact")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, penalty, 1e-9)
}

func TestFeedback_RejectsMissingMessageID(t *testing.T) {
	svc := newFakeService()
	processor, _ := newFeedbackProcessor(svc)

	err := processor.Process(context.Background(), core.FeedbackRecord{IsHelpful: false}, "")
	require.ErrorIs(t, err, core.ErrMalformedInput)
}

func TestFeedback_RepeatedNegativeAccumulates(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	processor, ledger := newFeedbackProcessor(svc)

	for i := 0; i < 4; i++ {
		record := core.FeedbackRecord{
			MessageID:     "reply-4",
			IsHelpful:     false,
			UserID:        "user-1",
			KnowledgeUsed: []string{"stubborn fact"},
		}
		require.NoError(t, processor.Process(ctx, record, ""))
	}

	penalty, err := ledger.Penalty(ctx, "user-1", "stubborn fact")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, penalty, 1e-9)
}

func TestTraceStore_RoundTripAndNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	traces := agent.NewTraceStore(svc)

	trace := core.Trace{
		ReplyID:     "reply-5",
		PromptUsed:  "prompt",
		ReplyText:   "answer",
		UserMessage: "question",
	}
	require.NoError(t, traces.Save(ctx, "user-1", trace))

	got, err := traces.Get(ctx, "user-1", "reply-5")
	require.NoError(t, err)
	assert.Equal(t, "answer", got.ReplyText)

	_, err = traces.Get(ctx, "user-1", "missing")
	require.ErrorIs(t, err, core.ErrNotFound)

	err = traces.Save(ctx, "user-1", core.Trace{})
	require.ErrorIs(t, err, core.ErrMalformedInput)
}
