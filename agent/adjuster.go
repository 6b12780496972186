package agent

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/core"
)

// RetrievalAdjuster re-scores raw semantic-search results against the
// penalty ledger: effective_score = max(0, raw − penalty). Read-only; the
// adjusted scores are never persisted back.
type RetrievalAdjuster struct {
	ledger *PenaltyLedger
	logger *zap.Logger
}

// NewRetrievalAdjuster creates an adjuster over ledger.
func NewRetrievalAdjuster(ledger *PenaltyLedger, logger *zap.Logger) *RetrievalAdjuster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrievalAdjuster{ledger: ledger, logger: logger}
}

// Adjust returns items with penalty-adjusted scores, re-sorted descending.
// Ties keep their original relative order. A penalty lookup failure for one
// item leaves that item unpenalized and does not abort the batch.
//
// The effective score is always computed from the search-assigned raw
// score, stashed in RawScore on first pass, so adjusting an already
// adjusted batch yields the same result instead of compounding penalties.
func (a *RetrievalAdjuster) Adjust(ctx context.Context, userID string, items []core.KnowledgeItem) []core.KnowledgeItem {
	adjusted := make([]core.KnowledgeItem, len(items))
	copy(adjusted, items)

	for i := range adjusted {
		raw := adjusted[i].RawScore
		if raw == 0 {
			raw = adjusted[i].Score
			adjusted[i].RawScore = raw
		}

		penalty, err := a.ledger.Penalty(ctx, userID, adjusted[i].Content)
		if err != nil {
			a.logger.Warn("penalty lookup failed, treating item as unpenalized",
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}
		score := raw - penalty
		if score < 0 {
			score = 0
		}
		adjusted[i].Score = score
	}

	sort.SliceStable(adjusted, func(i, j int) bool {
		return adjusted[i].Score > adjusted[j].Score
	})
	return adjusted
}
