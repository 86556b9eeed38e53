// Package loop implements the supervisory control loop: the per-turn
// orchestration described in spec section 4.1, tying together the parser,
// policy engine, ledgers, epistemic state, sandbox backend, and verifier.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"warden/internal/config"
	"warden/internal/epistemic"
	"warden/internal/ledger"
	"warden/internal/llm"
	"warden/internal/loop/prompts"
	"warden/internal/parser"
	"warden/internal/policy"
	"warden/internal/sandbox"
	"warden/internal/trace"
	"warden/internal/verifier"
)

const maxResponseTokens = 1500

// maxParseErrorHits is the hard-format-error threshold (spec section 4.1
// step 6).
const maxParseErrorHits = 5

// maxLengthNudges bounds the finish_reason=length retry budget.
const maxLengthNudges = 4

// preToolGateThreshold is the tool_calls_made count below which the
// verifier is never invoked (spec section 4.1 step 6 and section 8).
const preToolGateThreshold = 3

// finalizationWriteLimit aborts the loop once this many finalization-intent
// writes to a final_* file have occurred (spec scenario 5).
const finalizationWriteLimit = 3

// Loop is the supervisory control loop. One Loop serves exactly one task.
type Loop struct {
	Cfg     config.Config
	Engine  *policy.Engine
	Client  llm.ChatClient
	Backend sandbox.Backend
	Sandbox *sandbox.Sandbox
	Ledgers *ledger.Ledgers
	Trace   *trace.Recorder
	Notes   *NotesWriter
	Builder *ContextBuilder
	Verify  *verifier.Verifier

	Epistemic *epistemic.State
	State     *policy.State
	History   History

	// basePrompt is the profile's unescalated system prompt, kept so
	// repeated escalations compose from the original text rather than
	// stacking hints on top of hints.
	basePrompt string
}

// NewLoop wires one Loop's collaborators for task against an already
// started sandbox.
func NewLoop(cfg config.Config, engine *policy.Engine, client llm.ChatClient, backend sandbox.Backend, sb *sandbox.Sandbox, ledgers *ledger.Ledgers, tr *trace.Recorder, notes *NotesWriter, systemPrompt string) *Loop {
	st := policy.NewState()
	st.MaxSteps = cfg.MaxSteps
	return &Loop{
		Cfg:     cfg,
		Engine:  engine,
		Client:  client,
		Backend: backend,
		Sandbox: sb,
		Ledgers: ledgers,
		Trace:   tr,
		Notes:   notes,
		Builder: &ContextBuilder{SystemRole: cfg.SystemRole, SystemPrompt: systemPrompt, ContextMaxChars: cfg.ContextMaxChars},
		Verify: &verifier.Verifier{
			Client: client, Backend: backend, Sandbox: sb, Trace: tr,
			WorkDir: sb.WorkDir, MiniSteps: cfg.VerifierMiniSteps, LoopKillerN: cfg.VerifierLoopKillerN, MaxToolSeconds: cfg.MaxToolSeconds,
		},
		Epistemic:  epistemic.New(),
		State:      st,
		basePrompt: systemPrompt,
	}
}

// Run executes the control loop to termination. It returns the accepted
// answer; an UNRESOLVED-prefixed report (spec section 7's user-visible
// failure contract) when a model call fails or the step or verifier-round
// budget runs out; or the plain stop message of the format-error or
// finalization-loop detector. The error result is always nil.
func (l *Loop) Run(ctx context.Context, task Task) (string, error) {
	l.State.IsNegativeClaim = task.IsNegative
	l.State.TaskTokens = task.Tokens
	l.Trace.Emit(trace.KindTask, -1, map[string]any{"text": task.Text, "is_negative_claim": task.IsNegative})

	for step := 1; step <= l.Cfg.MaxSteps; step++ {
		l.State.Step = step

		l.applyPreTurnNudges()
		if l.Cfg.NotesUpdateInterval > 0 && step%l.Cfg.NotesUpdateInterval == 0 {
			l.State.NotesRequired = true
		}

		messages := l.Builder.Build(task, l.Notes.ReadTail(2000), l.Epistemic, l.History)
		resp, err := l.Client.Chat(ctx, toLLMMessages(messages), l.Cfg.Temperature, maxResponseTokens)
		if err != nil {
			return l.unresolved(fmt.Sprintf("model call failed: %v", err)), nil
		}
		text := ""
		finishReason := ""
		if len(resp.Choices) > 0 {
			text = resp.Choices[0].Message.Content
			finishReason = resp.Choices[0].FinishReason
		}
		l.Trace.Emit(trace.KindModel, step, map[string]any{"scope": trace.ScopeAgent, "latency_s": resp.LatencySeconds, "usage": resp.Usage, "finish_reason": finishReason})
		l.Trace.Emit(trace.KindModelIO, step, map[string]any{"response": clip(text, 4000)})
		l.History = append(l.History, HistoryEntry{Role: "assistant", Content: text})

		calls := parser.ExtractAll(text)
		if len(calls) == 0 {
			if one, err := parser.ExtractOne(text); err == nil {
				calls = []parser.ToolCall{one}
			}
		}

		if len(calls) == 0 {
			outcome, terminal, terminalMsg := l.handleNoTool(ctx, task, text, finishReason)
			if terminal {
				return outcome, nil
			}
			if terminalMsg != "" {
				return l.terminate(terminalMsg)
			}
			continue
		}

		if stop := l.handleToolCalls(ctx, calls, text); stop != "" {
			return l.terminate(stop)
		}
	}

	return l.unresolved("step budget exhausted"), nil
}

func (l *Loop) applyPreTurnNudges() {
	var advisories []string
	if l.State.ForceToolNext {
		advisories = append(advisories, "You have not made progress in several turns. Use a tool now.")
	}
	if l.State.ForceQueryMutation {
		advisories = append(advisories, "Reformulate your query before repeating the same search.")
	}
	if l.State.ForceMoveChange {
		advisories = append(advisories, "The same move has repeated too many times. Change your approach.")
	}
	if l.State.ForceSourceShift {
		advisories = append(advisories, "This source class keeps failing. Try a different kind of source.")
	}
	if l.State.ForceDomainShift {
		advisories = append(advisories, "Try a different domain than the last one.")
	}
	if len(advisories) == 0 {
		return
	}
	l.History = append(l.History, HistoryEntry{Role: "user", Content: strings.Join(advisories, " ")})
	l.Trace.Emit(trace.KindPolicyPreToolNudge, l.State.Step, map[string]any{"advisories": advisories})
}

// handleNoTool implements spec section 4.1 step 6. It returns (answer,
// true, "") when the run ends with a result (the accepted final answer, or
// the UNRESOLVED report once the verifier-round budget is spent),
// ("", false, msg) on a terminal failure, or ("", false, "") to continue
// the loop.
func (l *Loop) handleNoTool(ctx context.Context, task Task, text, finishReason string) (string, bool, string) {
	if looksLikeAttemptedJSON(text) {
		l.State.ParseErrorHits++
		l.Trace.Emit(trace.KindPolicyParseError, l.State.Step, map[string]any{"hits": l.State.ParseErrorHits})
		if l.State.ParseErrorHits >= maxParseErrorHits {
			return "", false, "format-error threshold exceeded: the model's output could not be parsed into a tool call or a finalized answer"
		}
		return "", false, ""
	}

	if claimsFinalization(text) {
		status := statusToken(text)
		if status == "" {
			l.Epistemic.AddUnresolved("Missing STATUS_UPDATE")
			return "", false, ""
		}
		if !strings.Contains(strings.ToUpper(text), "EVIDENCE_USED:") {
			l.Epistemic.AddUnresolved("Missing EVIDENCE_USED")
			return "", false, ""
		}
		for _, id := range claimedEvidenceIDs(text) {
			if !l.Ledgers.HasEvidenceID(id) {
				l.Epistemic.AddUnresolved(fmt.Sprintf("Unknown evidence id: %s", id))
				return "", false, ""
			}
		}
		l.Epistemic.SetStatus(status)
	}

	if l.State.ToolCallsMade < preToolGateThreshold {
		l.History = append(l.History, HistoryEntry{Role: "user", Content: "Use a tool now before finalizing or asking for review."})
		l.Trace.Emit(trace.KindPolicyPreToolNudge, l.State.Step, map[string]any{"reason": "pre_tool_gate"})
		return "", false, ""
	}

	if finishReason == "length" {
		if l.State.LengthNudges >= maxLengthNudges {
			return "", false, ""
		}
		l.State.LengthNudges++
		l.History = append(l.History, HistoryEntry{Role: "user", Content: "Your response was cut off. Reply more concisely or split it across turns."})
		l.Trace.Emit(trace.KindPolicyLengthNudge, l.State.Step, map[string]any{"count": l.State.LengthNudges})
		return "", false, ""
	}

	if l.State.VerifierRounds >= l.Cfg.MaxVerifierRounds {
		return l.unresolved("verifier round budget exhausted"), true, ""
	}
	l.State.VerifierRounds++

	decision, err := l.Verify.Run(ctx, task.Text, text)
	if err != nil {
		l.History = append(l.History, HistoryEntry{Role: "user", Content: "Verifier unavailable this round: " + err.Error()})
		return "", false, ""
	}
	if decision.Accepted {
		l.Epistemic.Verify()
		return text, true, ""
	}
	l.History = append(l.History, HistoryEntry{Role: "user", Content: decision.Feedback})
	return "", false, ""
}

// handleToolCalls implements spec section 4.1 step 7 for a batch of calls.
// A non-empty return value is a terminal message.
func (l *Loop) handleToolCalls(ctx context.Context, calls []parser.ToolCall, assistantText string) string {
	finalizationIntent := claimsFinalization(assistantText)

	for _, call := range calls {
		cmd := call.Cmd()
		dims := classifyCommand(cmd)

		notesDecision := l.Engine.CheckNotes(l.State, cmd)
		evID := l.Ledgers.NextEvidenceID()

		blocked := false
		reason := ""
		if notesDecision.Blocked {
			blocked, reason = true, notesDecision.Reason
		} else if b, r := l.Engine.CheckDomainBlock(l.State, dims.Domain); b {
			blocked, reason = true, r
		} else if dims.QueryFamily != "" {
			if b, r := l.Engine.CheckQueryMutation(l.State, dims.QueryFamily); b {
				blocked, reason = true, r
			}
		}

		var obs ledger.Observation
		var outcome ledger.Outcome
		var moveType ledger.MoveType

		if blocked {
			obs = ledger.Observation{ErrorType: reason, Error: blockedMessage(reason)}
			outcome = ledger.OutcomeBlocked
			moveType = ledger.ClassifyMoveType(dims.Domain, dims.QueryFamily, dims.SourceClass, l.State.Prev, dims.IsSearch)
			l.Trace.Emit(trace.KindPolicyNotesGuard, l.State.Step, map[string]any{"reason": reason})
		} else {
			if !notesDecision.Blocked && l.State.NotesRequired && notesDecision.Mode == ledger.NotesModeAppend {
				l.State.NotesRequired = false
			}
			res, execErr := l.Backend.Exec(ctx, l.Sandbox, []string{cmd}, l.Cfg.MaxToolSeconds)
			if execErr != nil {
				obs = ledger.Observation{ExitCode: -1, Error: execErr.Error(), ErrorType: ledger.ClassifyFailure(call.Tool, -1, execErr.Error(), "")}
				outcome = ledger.OutcomeFailed
			} else {
				failureType := ledger.ClassifyFailure(call.Tool, res.ExitCode, "", string(res.Output))
				obs = ledger.Observation{ExitCode: res.ExitCode, Output: clip(string(res.Output), 12000), ErrorType: failureType}
				if res.ExitCode != 0 || failureType != "" {
					outcome = ledger.OutcomeFailed
				} else {
					outcome = ledger.OutcomeOK
				}
			}

			moveType = ledger.ClassifyMoveType(dims.Domain, dims.QueryFamily, dims.SourceClass, l.State.Prev, dims.IsSearch)
			moveSig := ledger.MoveSig(moveType, dims.Domain, dims.QueryFamily)
			failed := outcome != ledger.OutcomeOK

			l.Engine.RecordQueryFamily(l.State, dims.QueryFamily)
			if l.Engine.RecordFailure(l.State, obs.ErrorType) {
				l.Builder.SystemPrompt = prompts.WithEscalation(l.basePrompt, obs.ErrorType)
			}
			l.Engine.RecordMoveSig(l.State, moveSig, l.Epistemic.Status == epistemic.Unresolved)
			l.Engine.RecordSourceClassOutcome(l.State, dims.SourceClass, failed)

			isOfficial := dims.Domain != "" && l.Engine.IsOfficialDomain(dims.Domain, l.State.TaskTokens)
			isIndependent := dims.Domain != "" && !l.Engine.IsSearchDomain(dims.Domain)
			l.Engine.RecordDomainHit(l.State, dims.Domain, isOfficial, isIndependent)
			l.Engine.ClearDomainBlock(l.State, dims.Domain)

			l.State.Prev = &ledger.PrevMove{Domain: dims.Domain, QueryFamily: dims.QueryFamily, SourceClass: dims.SourceClass}

			if failed {
				l.Epistemic.ToolFailed(obs.ErrorType)
			}
		}

		argsJSON, _ := json.Marshal(call.Args)
		ev := ledger.Evidence{
			ID: evID, TS: nowRFC3339(), Step: l.State.Step, Tool: call.Tool, Args: call.Args,
			Obs: obs, URLs: urlsOf(dims), FailureType: obs.ErrorType, Blocked: blocked,
		}
		_ = l.Ledgers.RecordEvidence(ev)
		mv := ledger.Move{
			TS: nowRFC3339(), Step: l.State.Step, Tool: call.Tool, Cmd: cmd, URL: dims.URL,
			Domain: dims.Domain, Query: dims.Query, QueryFamily: dims.QueryFamily, SourceClass: dims.SourceClass,
			MoveType: moveType, MoveSig: ledger.MoveSig(moveType, dims.Domain, dims.QueryFamily),
			FailureType: obs.ErrorType, Outcome: outcome,
		}
		_, _ = l.Ledgers.RecordMove(mv)
		q := ledger.Query{
			TS: nowRFC3339(), Step: l.State.Step, Domain: dims.Domain, Query: dims.Query,
			QueryFamily: dims.QueryFamily, SourceClass: dims.SourceClass, Outcome: outcome,
		}
		_, _ = l.Ledgers.RecordQuery(q)

		obsJSON, _ := json.Marshal(obs)
		_ = l.Notes.AppendStep(l.State.Step, call.Tool, string(argsJSON), string(obsJSON), evID)

		l.History = append(l.History, HistoryEntry{
			Role:    "user",
			Content: fmt.Sprintf("EVIDENCE_ID=%s EXIT=%d ERROR_TYPE=%s OUTPUT=%s", evID, obs.ExitCode, obs.ErrorType, obs.Output),
		})

		l.Trace.Emit(trace.KindTool, l.State.Step, map[string]any{
			"scope": trace.ScopeAgent, "tool": call.Tool, "cmd": cmd, "outcome": outcome, "evidence_id": evID,
		})

		if !blocked {
			l.State.ToolCallsMade++
			l.State.ClearForceFlags()
		}

		if finalizationIntent && looksLikeFinalWrite(cmd) {
			l.State.FinalizationWrites++
			l.Trace.Emit(trace.KindPolicyFinalStop, l.State.Step, map[string]any{"count": l.State.FinalizationWrites})
			if l.State.FinalizationWrites >= finalizationWriteLimit {
				return "Final deliverables appear to be written under /work. Stopping to prevent a tool loop."
			}
		}
	}
	return ""
}

// unresolved formats the user-visible failure contract from spec section 7.
func (l *Loop) unresolved(reason string) string {
	l.Epistemic.AddUnresolved(reason)
	var sb strings.Builder
	sb.WriteString("UNRESOLVED: ")
	sb.WriteString(string(l.Epistemic.Status))
	sb.WriteString(fmt.Sprintf("\nconstraints=%v blocked=%v unresolved=%v", l.Epistemic.Constraints, l.Epistemic.Blocked, l.Epistemic.Unresolved))
	sb.WriteString("\nSee /work/notes.md and /work/evidence.jsonl for the full trail.")
	return sb.String()
}

func (l *Loop) terminate(message string) (string, error) {
	return message, nil
}

func toLLMMessages(entries []HistoryEntry) []llm.Message {
	out := make([]llm.Message, 0, len(entries))
	for _, e := range entries {
		out = append(out, llm.Message{Role: e.Role, Content: e.Content})
	}
	return out
}

func urlsOf(d dimensions) []string {
	if d.URL == "" {
		return nil
	}
	return []string{d.URL}
}

func looksLikeAttemptedJSON(text string) bool {
	return strings.Contains(text, "{") && strings.Contains(text, "}")
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
