package loop

import "warden/internal/ledger"

// Task is the immutable natural-language input (spec section 3), classified
// once at start.
type Task struct {
	Text          string
	IsNegative    bool
	Tokens        []string
}

// NewTask classifies text's negative-claim wording and extracts its token
// set, used to seed official-domain heuristics.
func NewTask(text string) Task {
	return Task{
		Text:       text,
		IsNegative: ledger.IsNegativeClaimTask(text),
		Tokens:     ledger.TaskTokens(text),
	}
}
