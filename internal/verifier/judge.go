package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"warden/internal/llm"
)

var judgeSystemPrompt = `You are the judge of an agent's tool-using investigation. Given the task, ` +
	`final answer, trace summary, and the results of several yes/no checks, score the answer 1-4 ` +
	`(4=fully supported and covered, 1=unsupported or contradicted). Reply with exactly one JSON ` +
	`object: {"score":1-4,"explanation":"...","missing":[...],"wrong":[...],` +
	`"next_actions":[{"goal":"...","suggested_tools":[...],"success_criteria":"..."}],` +
	`"stop_when":[...],"tool_waste":[...],"preferred_source":[...]}.`

// Judge issues the judgment LLM call and scrubs the "formula" domain
// constraint from every string field of the decoded gradient (spec section
// 4.4 step 4).
func Judge(ctx context.Context, client llm.ChatClient, task, answer string, summary Summary, checks []CheckResult) (*Gradient, error) {
	checksJSON, _ := json.Marshal(checks)
	prompt := fmt.Sprintf(
		"TASK:\n%s\n\nFINAL ANSWER:\n%s\n\nTRACE SUMMARY:\n%s\n\nCHECK RESULTS:\n%s\n",
		task, answer, summary.Trace, string(checksJSON),
	)
	resp, err := client.Chat(ctx, []llm.Message{
		{Role: "system", Content: judgeSystemPrompt},
		{Role: "user", Content: prompt},
	}, 0, 1200)
	if err != nil {
		return nil, fmt.Errorf("judge: chat: %w", err)
	}

	obj, ok := firstJSONObject(responseText(resp))
	if !ok {
		return nil, fmt.Errorf("judge: no JSON object in response")
	}
	var g Gradient
	if err := json.Unmarshal([]byte(obj), &g); err != nil {
		return nil, fmt.Errorf("judge: decode gradient: %w", err)
	}
	scrubGradient(&g)
	return &g, nil
}

var formulaWord = regexp.MustCompile(`(?i)\bformula\b`)

// scrubGradient removes the word "formula" from every string field per the
// domain constraint that this term never appears in verifier output.
func scrubGradient(g *Gradient) {
	g.Explanation = scrubWord(g.Explanation)
	g.Missing = scrubSlice(g.Missing)
	g.Wrong = scrubSlice(g.Wrong)
	g.StopWhen = scrubSlice(g.StopWhen)
	g.ToolWaste = scrubSlice(g.ToolWaste)
	g.PreferredSource = scrubSlice(g.PreferredSource)
	for i := range g.NextActions {
		g.NextActions[i].Goal = scrubWord(g.NextActions[i].Goal)
		g.NextActions[i].SuccessCriteria = scrubWord(g.NextActions[i].SuccessCriteria)
		g.NextActions[i].SuggestedTools = scrubSlice(g.NextActions[i].SuggestedTools)
	}
}

func scrubWord(s string) string {
	cleaned := formulaWord.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(cleaned), " ")
}

func scrubSlice(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, scrubWord(s))
	}
	return out
}
