// Package trace emits the per-event record stream described in spec
// section 6: every assistant/tool/model/verifier/policy event the loop
// produces, as one JSON object per line in trace.jsonl.
package trace

import (
	"path/filepath"
	"time"

	"warden/internal/jsonl"
)

// Kinds named in spec section 6's trace event shape table.
const (
	KindTask             = "task"
	KindSandbox          = "sandbox"
	KindAssistant        = "assistant"
	KindTool             = "tool"
	KindModel            = "model"
	KindModelIO          = "model_io"
	KindVerifier         = "verifier"
	KindVerifierToAgent  = "verifier_to_agent"
	KindVerifierGradient = "verifier_gradient"
	KindAgentFromVerif   = "agent_from_verifier"
	KindContainerEvent   = "container_event"
	KindHeartbeat        = "heartbeat"

	KindPolicyParseError   = "policy_parse_error"
	KindPolicyLengthNudge  = "policy_length_nudge"
	KindPolicyPreToolNudge = "policy_pre_tool_nudge"
	KindPolicyReminder     = "policy_reminder"
	KindPolicyChoice       = "policy_choice"
	KindPolicyStagnation   = "policy_stagnation"
	KindPolicyNotesGuard   = "policy_notes_guard"
	KindPolicyNotesGate    = "policy_notes_gate"
	KindPolicyQueryMut     = "policy_query_mutation"
	KindPolicyDomainShift  = "policy_domain_shift"
	KindPolicyFinalStop    = "policy_finalization_stop"
)

// Scope values for tool/model events.
const (
	ScopeAgent        = "agent"
	ScopeRuntime      = "runtime"
	ScopeVerifier     = "verifier"
	ScopeVerifierCheck = "verifier_check"
)

// Recorder appends structured events to trace.jsonl.
type Recorder struct {
	w *jsonl.Writer
}

// Open creates (or appends to) trace.jsonl under workDir.
func Open(workDir string) (*Recorder, error) {
	w, err := jsonl.Open(filepath.Join(workDir, "trace.jsonl"))
	if err != nil {
		return nil, err
	}
	return &Recorder{w: w}, nil
}

// Emit writes one event merging kind, an RFC3339Nano timestamp, step (when
// >= 0), and fields. fields may be nil.
func (r *Recorder) Emit(kind string, step int, fields map[string]any) {
	if r == nil || r.w == nil {
		return
	}
	rec := map[string]any{
		"type": kind,
		"ts":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if step >= 0 {
		rec["step"] = step
	}
	for k, v := range fields {
		rec[k] = v
	}
	_ = r.w.Append(rec)
}

// Close flushes and closes the underlying file.
func (r *Recorder) Close() error {
	if r == nil || r.w == nil {
		return nil
	}
	return r.w.Close()
}
