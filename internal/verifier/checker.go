package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"warden/internal/ledger"
	"warden/internal/llm"
	"warden/internal/parser"
	"warden/internal/sandbox"
	"warden/internal/trace"
)

// checkerSystemPrompt grounds the mini-agent: same shell tool, same sandbox,
// terminate with a single JSON answer line.
var checkerSystemPrompt = `You are a fact-checking sub-agent auditing one claim. ` +
	`You may run shell commands the same way the main agent does: reply with ` +
	`{"tool":"shell","args":{"cmd":"..."}}. When you have enough evidence, reply ` +
	`with exactly one JSON line: {"answer":"yes"|"no"|"unknown","evidence":[{"type":"...","ref":"...","snippet":"..."}],"notes":"..."}.`

// signature is the loop-killer key: repeating the same (tool, args,
// exit_code/error) combination 3 times short-circuits a check.
type signature string

func makeSignature(tool string, args map[string]any, exitCode int, errType string) signature {
	b, _ := json.Marshal(args)
	return signature(fmt.Sprintf("%s|%s|%d|%s", tool, string(b), exitCode, errType))
}

// RunCheck executes one check's bounded tool-using mini-agent loop (spec
// section 4.4 step 3).
func RunCheck(
	ctx context.Context,
	client llm.ChatClient,
	backend sandbox.Backend,
	sb *sandbox.Sandbox,
	tr *trace.Recorder,
	check Check,
	maxSteps, loopKillerN, maxToolSeconds int,
) CheckResult {
	history := []llm.Message{
		{Role: "system", Content: checkerSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("CLAIM: %s\nQUESTION: %s\nSOURCE HINT: %s", check.Claim, check.Question, check.SourceHint)},
	}

	sigCounts := map[signature]int{}
	domainSet := map[string]struct{}{}
	failed := false

	for step := 0; step < maxSteps; step++ {
		resp, err := client.Chat(ctx, history, 0, 500)
		if err != nil {
			return CheckResult{Check: check, Answer: "unknown", Notes: "chat error: " + err.Error(), Failed: true}
		}
		text := responseText(resp)
		history = append(history, llm.Message{Role: "assistant", Content: text})

		if result, ok := parseAnswer(text, check); ok {
			result.Domains = domainKeys(domainSet)
			result.Failed = failed
			return result
		}

		call, err := parser.ExtractOne(text)
		if err != nil {
			history = append(history, llm.Message{Role: "user", Content: "No valid tool call or answer found. Respond with a tool call or the final answer JSON."})
			continue
		}

		cmd := call.Cmd()
		if url := ledger.ExtractFirstURL(cmd); url != "" {
			if d := ledger.NormalizeDomain(url); d != "" {
				domainSet[d] = struct{}{}
			}
		}

		res, execErr := backend.Exec(ctx, sb, []string{cmd}, maxToolSeconds)
		errType := ""
		errStr := ""
		if execErr != nil {
			errStr = execErr.Error()
			errType = ledger.ClassifyFailure(call.Tool, -1, errStr, "")
			failed = true
		} else {
			errType = ledger.ClassifyFailure(call.Tool, res.ExitCode, "", string(res.Output))
			if res.ExitCode != 0 {
				failed = true
			}
		}

		sig := makeSignature(call.Tool, call.Args, res.ExitCode, errType)
		sigCounts[sig]++
		killerLimit := loopKillerN
		if killerLimit <= 0 {
			killerLimit = 3
		}
		if sigCounts[sig] >= killerLimit {
			return CheckResult{
				Check:   check,
				Answer:  "unknown",
				Notes:   "loop-killer",
				Domains: domainKeys(domainSet),
				Failed:  true,
			}
		}

		tr.Emit(trace.KindTool, -1, map[string]any{
			"scope": trace.ScopeVerifierCheck, "tool": call.Tool, "cmd": cmd, "exit_code": res.ExitCode,
		})
		history = append(history, llm.Message{Role: "user", Content: fmt.Sprintf("exit_code=%d error_type=%s output=%s", res.ExitCode, errType, clipTail(string(res.Output), 4000))})
	}

	return CheckResult{Check: check, Answer: "unknown", Notes: "step limit reached", Domains: domainKeys(domainSet), Failed: failed}
}

func parseAnswer(text string, check Check) (CheckResult, bool) {
	obj, ok := firstJSONObject(text)
	if !ok {
		return CheckResult{}, false
	}
	var payload struct {
		Answer   string          `json:"answer"`
		Evidence []CheckEvidence `json:"evidence"`
		Notes    string          `json:"notes"`
	}
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return CheckResult{}, false
	}
	if payload.Answer == "" {
		return CheckResult{}, false
	}
	if _, isTool := parserLooksLikeTool(obj); isTool {
		return CheckResult{}, false
	}
	return CheckResult{Check: check, Answer: strings.ToLower(payload.Answer), Evidence: payload.Evidence, Notes: payload.Notes}, true
}

// parserLooksLikeTool disambiguates an answer object from a tool-call
// object when both happen to parse as plain JSON with overlapping keys.
func parserLooksLikeTool(obj string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return nil, false
	}
	_, hasTool := m["tool"]
	_, hasAction := m["action"]
	return m, hasTool || hasAction
}

func domainKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
