// Package worker runs the event-driven chat agents: each worker binds
// pipeline operations to broker events and runs until cancelled.
package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/bus"
)

// Worker is one long-running agent process on the event bus. It owns a
// broker client with handlers already registered and runs the dispatch
// loop until the context is cancelled.
type Worker struct {
	name         string
	description  string
	capabilities []bus.Definition
	client       *bus.Client
	logger       *zap.Logger
}

// New creates a worker over an already-configured broker client. The
// capabilities list documents which events the worker consumes and
// produces.
func New(name, description string, client *bus.Client, capabilities []bus.Definition, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		name:         name,
		description:  description,
		capabilities: capabilities,
		client:       client,
		logger:       logger,
	}
}

// Name returns the worker's registered name.
func (w *Worker) Name() string { return w.name }

// Run connects to the broker and dispatches events until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.client.Connect(ctx); err != nil {
		return err
	}
	defer w.client.Close()

	for _, cap := range w.capabilities {
		w.logger.Info("capability registered",
			zap.String("worker", w.name),
			zap.String("event", cap.EventName),
			zap.String("topic", cap.Topic))
	}
	w.logger.Info("worker started",
		zap.String("worker", w.name),
		zap.String("description", w.description))

	err := w.client.Listen(ctx)
	if err == context.Canceled || ctx.Err() != nil {
		w.logger.Info("worker stopped", zap.String("worker", w.name))
		return nil
	}
	return err
}
