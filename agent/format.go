package agent

import (
	"fmt"
	"strings"

	"github.com/evermind-ai/evermind/core"
)

// formatHistory renders up to the last window turns as a transcript block
// for prompt embedding. System turns are bracketed so the model reads them
// as annotations rather than dialogue.
func formatHistory(turns []core.ConversationTurn, window int) string {
	if len(turns) == 0 {
		return "No previous conversation history."
	}
	if window > 0 && len(turns) > window {
		turns = turns[len(turns)-window:]
	}

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		if turn.Role == core.RoleSystem {
			lines = append(lines, fmt.Sprintf("[SYSTEM]: %s", turn.Content))
		} else {
			lines = append(lines, fmt.Sprintf("%s: %s", capitalize(string(turn.Role)), turn.Content))
		}
	}
	return strings.Join(lines, "\n")
}

// formatKnowledge renders up to the top window items as numbered fragments.
func formatKnowledge(items []core.KnowledgeItem, window int) string {
	if len(items) == 0 {
		return "No relevant stored knowledge found."
	}
	if window > 0 && len(items) > window {
		items = items[:window]
	}

	lines := make([]string, 0, len(items))
	for i, item := range items {
		lines = append(lines, fmt.Sprintf("[Knowledge %d] %s", i+1, item.Content))
	}
	return strings.Join(lines, "\n\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// truncate cuts s to max characters with an ellipsis marker.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
