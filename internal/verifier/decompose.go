package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"warden/internal/ledger"
	"warden/internal/llm"
)

const maxChecks = 3

var decomposeSystemPrompt = `You are an audit planner. Given a task and an agent's trace summary, ` +
	`propose at most 3 yes/no checks that would verify the agent's final answer. ` +
	`Each check has kind ("coverage" or "support"), claim, question, source_hint, taxonomy. ` +
	`Reply with exactly one JSON object: {"checks":[{"kind":...,"claim":...,"question":...,"source_hint":...,"taxonomy":...}]}.`

// Decompose asks the model for up to 3 checks, then force-inserts a
// coverage check when the task or answer matches the negative-claim /
// coverage-triggering heuristic and the model omitted one (spec section 4.4
// step 2).
func Decompose(ctx context.Context, client llm.ChatClient, task, answer string, summary Summary) ([]Check, error) {
	prompt := fmt.Sprintf(
		"TASK:\n%s\n\nFINAL ANSWER:\n%s\n\nTRACE SUMMARY:\n%s\n\nNOTES TAIL:\n%s\n\nEVIDENCE TAIL:\n%s\n",
		task, answer, summary.Trace, summary.Notes, summary.Evidence,
	)
	resp, err := client.Chat(ctx, []llm.Message{
		{Role: "system", Content: decomposeSystemPrompt},
		{Role: "user", Content: prompt},
	}, 0, 800)
	if err != nil {
		return nil, fmt.Errorf("decompose: chat: %w", err)
	}

	checks := parseChecks(responseText(resp))

	needsCoverage := ledger.IsNegativeClaimTask(task) || ledger.IsNegativeClaimAnswer(answer)
	if needsCoverage && !hasCoverageCheck(checks) {
		checks = append([]Check{{
			Kind:     "coverage",
			Claim:    "the answer's negative/existence claim has been checked against all plausible sources",
			Question: "Has every plausible official or registry source been checked and none contradicts the answer?",
			Taxonomy: "coverage",
		}}, checks...)
	}

	if len(checks) > maxChecks {
		checks = checks[:maxChecks]
	}
	return checks, nil
}

func hasCoverageCheck(checks []Check) bool {
	for _, c := range checks {
		if c.Kind == "coverage" {
			return true
		}
	}
	return false
}

func parseChecks(text string) []Check {
	obj, ok := firstJSONObject(text)
	if !ok {
		return nil
	}
	var payload struct {
		Checks []Check `json:"checks"`
	}
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return nil
	}
	return payload.Checks
}

func responseText(resp llm.ChatResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}
