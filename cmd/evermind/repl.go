package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evermind-ai/evermind/agent"
	"github.com/evermind-ai/evermind/core"
	"github.com/evermind-ai/evermind/llm"
)

// newReplCmd runs the full pipeline locally without a broker: chromem
// vectors, a SQLite key-value store, and whatever LLM the configuration
// names. Useful for trying the agent and inspecting explanations.
func newReplCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Chat with the agent locally, no broker required",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			svc, closer, err := buildMemory(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closer()

			gen, err := buildGenerator(cfg.LLM)
			if err != nil {
				logger.Warn("llm unavailable, using offline generator", zap.Error(err))
				gen = offlineGenerator()
			}

			pipeline := agent.NewPipeline(svc, gen, agent.WithLogger(logger))
			conversationID := newConversationID()
			var lastReplyID string

			fmt.Println("evermind repl. Commands: /good, /bad, /why, /quit")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch {
				case line == "":
					continue
				case line == "/quit":
					return nil
				case line == "/good", line == "/bad":
					if lastReplyID == "" {
						fmt.Println("nothing to rate yet")
						continue
					}
					err := pipeline.HandleFeedback(ctx, core.FeedbackRecord{
						MessageID: lastReplyID,
						IsHelpful: line == "/good",
						UserID:    userID,
						Timestamp: time.Now().UTC(),
					}, conversationID)
					if err != nil {
						fmt.Printf("feedback failed: %v\n", err)
						continue
					}
					fmt.Println("feedback recorded")
					continue
				case line == "/why":
					fmt.Println(pipeline.HandleExplanation(ctx, conversationID, userID))
					continue
				}

				reply, err := pipeline.HandleMessage(ctx, agent.InboundMessage{
					UserID:         userID,
					ConversationID: conversationID,
					Message:        line,
				})
				if err != nil {
					fmt.Printf("error: %v\n", err)
					continue
				}
				if !reply.IsExplanation {
					lastReplyID = reply.ReplyID
				}
				fmt.Println(reply.Text)
			}
		},
	}
	cmd.Flags().StringVar(&userID, "user", agent.DefaultUserID, "user to chat as")
	return cmd
}

// offlineGenerator acknowledges messages without an LLM so the rest of
// the pipeline (memory, penalties, traces, explanations) can be exercised.
func offlineGenerator() llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, prompt string, temperature float64) (string, error) {
		if strings.HasPrefix(prompt, "Analyze the user message") {
			return "none", nil
		}
		return "Noted. (offline mode: no language model is configured)", nil
	})
}
