// Command evermind runs the conversational agent system: the event-bus
// workers, the HTTP gateway, and a broker-less local REPL.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/evermind-ai/evermind/agent"
	"github.com/evermind-ai/evermind/bus"
	"github.com/evermind-ai/evermind/config"
	"github.com/evermind-ai/evermind/httpapi"
	"github.com/evermind-ai/evermind/worker"
)

var (
	cfgPath string
	cfg     *config.Config
	logger  *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "evermind",
		Short: "Conversational agent with adaptive memory and explainable replies",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}

			level, err := zapcore.ParseLevel(cfg.LogLevel)
			if err != nil {
				level = zapcore.InfoLevel
			}
			zapCfg := zap.NewProductionConfig()
			zapCfg.Level = zap.NewAtomicLevelAt(level)
			logger, err = zapCfg.Build()
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")

	root.AddCommand(
		newWorkerCmd(),
		newFeedbackWorkerCmd(),
		newKnowledgeWorkerCmd(),
		newServeCmd(),
		newInjectCmd(),
		newReplCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// buildPipeline assembles the full agent pipeline, returning the closer
// for its memory backends.
func buildPipeline(ctx context.Context) (*agent.Pipeline, func(), error) {
	svc, closer, err := buildMemory(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	gen, err := buildGenerator(cfg.LLM)
	if err != nil {
		closer()
		return nil, nil, err
	}
	pipeline := agent.NewPipeline(svc, gen, agent.WithLogger(logger))
	return pipeline, closer, nil
}

func runWorker(build func(client *bus.Client, pipeline *agent.Pipeline) *worker.Worker, source string) error {
	ctx, cancel := signalContext()
	defer cancel()

	pipeline, closer, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer closer()

	client := bus.NewClient(cfg.BrokerURL, source, bus.WithClientLogger(logger))
	return build(client, pipeline).Run(ctx)
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the chat worker (all operations when the store is process-local)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.SharedStore() {
				// chromem lives in process memory, so splitting the
				// operations across processes would split the agent's
				// memory with them. Run everything on one pipeline.
				logger.Info("process-local store, running combined worker",
					zap.String("backend", cfg.Store.Backend))
				return runWorker(func(client *bus.Client, pipeline *agent.Pipeline) *worker.Worker {
					return worker.NewCombined(client, pipeline, logger)
				}, "combined-worker")
			}
			return runWorker(func(client *bus.Client, pipeline *agent.Pipeline) *worker.Worker {
				return worker.NewChat(client, pipeline, worker.ChatConfig{
					DelegateExplanations: cfg.DelegateExplanations,
				}, logger)
			}, "chat-worker")
		},
	}
}

// errSplitWorkerNeedsSharedStore rejects split worker processes on
// process-local backends, where each process would see its own empty
// memory instead of the chat worker's.
func errSplitWorkerNeedsSharedStore() error {
	return fmt.Errorf("store backend %q is process-local; split workers need store.backend=pgvector, or run the combined 'worker' command instead", cfg.Store.Backend)
}

func newFeedbackWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback-worker",
		Short: "Run the feedback and explanation worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.SharedStore() {
				return errSplitWorkerNeedsSharedStore()
			}
			return runWorker(func(client *bus.Client, pipeline *agent.Pipeline) *worker.Worker {
				return worker.NewFeedback(client, pipeline, logger)
			}, "feedback-worker")
		},
	}
}

func newKnowledgeWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "knowledge-worker",
		Short: "Run the background knowledge worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.SharedStore() {
				return errSplitWorkerNeedsSharedStore()
			}
			return runWorker(func(client *bus.Client, pipeline *agent.Pipeline) *worker.Worker {
				return worker.NewKnowledge(client, pipeline, logger)
			}, "knowledge-worker")
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			client := bus.NewClient(cfg.BrokerURL, "http-gateway", bus.WithClientLogger(logger))
			if err := client.Connect(ctx, bus.TopicActionResults); err != nil {
				return err
			}
			defer client.Close()
			go func() {
				if err := client.Listen(ctx); err != nil && ctx.Err() == nil {
					logger.Error("broker connection lost", zap.Error(err))
					cancel()
				}
			}()

			gateway := httpapi.New(client, httpapi.WithLogger(logger))
			srv := &http.Server{Addr: cfg.HTTPAddr, Handler: gateway.Router()}

			go func() {
				<-ctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logger.Info("gateway listening", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

func newInjectCmd() *cobra.Command {
	var userID, source string
	cmd := &cobra.Command{
		Use:   "inject <fact>",
		Short: "Publish a fact into semantic memory via the knowledge worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			client := bus.NewClient(cfg.BrokerURL, "inject-cli", bus.WithClientLogger(logger))
			if err := client.Connect(ctx); err != nil {
				return err
			}
			defer client.Close()

			metadata := map[string]string{}
			if source != "" {
				metadata["origin"] = source
			}
			env, err := client.Publish(ctx, bus.TopicBusinessFacts, bus.EventKnowledgeInject,
				bus.KnowledgeInjectPayload{
					Content:   args[0],
					UserID:    userID,
					Metadata:  metadata,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				},
				bus.WithUserID(userID))
			if err != nil {
				return err
			}
			fmt.Printf("published knowledge.inject %s\n", env.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", agent.DefaultUserID, "user to scope the fact to")
	cmd.Flags().StringVar(&source, "source", "", "origin label stored with the fact")
	return cmd
}

func newConversationID() string {
	return uuid.NewString()
}
