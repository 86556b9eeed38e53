package loop

import (
	"fmt"
	"strings"

	"warden/internal/epistemic"
)

// ContextBuilder assembles the per-turn prompt (spec section 4.1 step 3):
// system prompt, optional epistemic banner, task, pinned notes, open
// constraint/unresolved/blocked sections, then a trimmed history tail.
type ContextBuilder struct {
	SystemRole      string
	SystemPrompt    string
	ContextMaxChars int
}

// Build returns the full message list to send to the ChatClient.
func (c *ContextBuilder) Build(task Task, notesTail string, epi *epistemic.State, history History) []HistoryEntry {
	var sb strings.Builder

	if epi.Status != epistemic.InProgress {
		sb.WriteString(fmt.Sprintf("EPISTEMIC STATE: %s\n\n", epi.Status))
	}

	sb.WriteString(fmt.Sprintf("PRIMARY TASK:\n%s\n\n", task.Text))

	if notesTail != "" {
		sb.WriteString(fmt.Sprintf("CURRENT NOTES:\n%s\n\n", notesTail))
	}

	if len(epi.Constraints) > 0 {
		sb.WriteString("OPEN CONSTRAINTS:\n" + bulletList(epi.Constraints) + "\n")
	}
	if len(epi.Unresolved) > 0 {
		sb.WriteString("UNRESOLVED REASONS:\n" + bulletList(epi.Unresolved) + "\n")
	}
	if len(epi.Blocked) > 0 {
		sb.WriteString("BLOCKERS:\n" + bulletList(epi.Blocked) + "\n")
	}

	messages := []HistoryEntry{
		{Role: c.SystemRole, Content: c.SystemPrompt},
		{Role: "user", Content: sb.String()},
	}
	messages = append(messages, History(history).Trimmed(c.ContextMaxChars)...)
	return messages
}

func bulletList(items []string) string {
	var sb strings.Builder
	for _, it := range items {
		sb.WriteString("- " + it + "\n")
	}
	return sb.String()
}
