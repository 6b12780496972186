package agent

import (
	"context"
	"fmt"

	"github.com/evermind-ai/evermind/core"
	"github.com/evermind-ai/evermind/memory"
)

// TraceStore persists per-reply traces in the keyed-storage family reserved
// for them. Traces are written exactly once, immediately after generation,
// and never updated; retention is the store's concern.
type TraceStore struct {
	svc memory.Service
}

// NewTraceStore creates a trace store over svc.
func NewTraceStore(svc memory.Service) *TraceStore {
	return &TraceStore{svc: svc}
}

// Save writes the trace under its reply identifier.
func (s *TraceStore) Save(ctx context.Context, userID string, trace core.Trace) error {
	if trace.ReplyID == "" {
		return fmt.Errorf("trace without reply id: %w", core.ErrMalformedInput)
	}
	if err := s.svc.Store(ctx, memory.TraceScopeID, trace.ReplyID, trace, userID, userID); err != nil {
		return fmt.Errorf("save trace %s: %w", trace.ReplyID, err)
	}
	return nil
}

// Get loads the trace for replyID, or core.ErrNotFound when absent.
func (s *TraceStore) Get(ctx context.Context, userID, replyID string) (*core.Trace, error) {
	var trace core.Trace
	found, err := s.svc.Retrieve(ctx, memory.TraceScopeID, replyID, userID, userID, &trace)
	if err != nil {
		return nil, fmt.Errorf("load trace %s: %w", replyID, err)
	}
	if !found {
		return nil, fmt.Errorf("trace %s: %w", replyID, core.ErrNotFound)
	}
	return &trace, nil
}
