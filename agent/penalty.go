package agent

import (
	"context"
	"fmt"

	"github.com/evermind-ai/evermind/memory"
)

// PenaltyLedger tracks accumulated per-user penalties keyed by content
// fingerprint. Read on every retrieval pass, written only on negative
// feedback. Penalties only ever grow; records are never deleted.
//
// Concurrent increments for the same fingerprint are issued as a single
// read-then-write step. The external store arbitrates atomicity; a racing
// pair may under-count, which is acceptable for a soft ranking signal.
type PenaltyLedger struct {
	svc  memory.Service
	step float64
}

// NewPenaltyLedger creates a ledger over svc with the given increment step.
func NewPenaltyLedger(svc memory.Service, step float64) *PenaltyLedger {
	return &PenaltyLedger{svc: svc, step: step}
}

// Penalty returns the accumulated penalty for content, or 0 when no record
// exists.
func (l *PenaltyLedger) Penalty(ctx context.Context, userID, content string) (float64, error) {
	key := memory.Fingerprint(content)
	var penalty float64
	found, err := l.svc.Retrieve(ctx, memory.PenaltyScopeID, key, userID, userID, &penalty)
	if err != nil {
		return 0, fmt.Errorf("penalty lookup: %w", err)
	}
	if !found {
		return 0, nil
	}
	return penalty, nil
}

// Increment adds the ledger step to the penalty for content, creating the
// record at zero when absent.
func (l *PenaltyLedger) Increment(ctx context.Context, userID, content string) error {
	key := memory.Fingerprint(content)

	var current float64
	if _, err := l.svc.Retrieve(ctx, memory.PenaltyScopeID, key, userID, userID, &current); err != nil {
		return fmt.Errorf("penalty read: %w", err)
	}

	next := current + l.step
	if err := l.svc.Store(ctx, memory.PenaltyScopeID, key, next, userID, userID); err != nil {
		return fmt.Errorf("penalty write: %w", err)
	}
	return nil
}
