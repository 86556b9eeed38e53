package verifier

import (
	"context"
	"fmt"

	"warden/internal/ledger"
	"warden/internal/llm"
	"warden/internal/sandbox"
	"warden/internal/trace"
)

// Verifier bundles the collaborators the pipeline needs: a ChatClient for
// decompose/judge, and the agent's own sandbox for mini-agent tool calls
// (spec section 9's open question: the verifier reuses the agent's sandbox
// rather than a snapshot).
type Verifier struct {
	Client         llm.ChatClient
	Backend        sandbox.Backend
	Sandbox        *sandbox.Sandbox
	Trace          *trace.Recorder
	WorkDir        string
	MiniSteps      int
	LoopKillerN    int
	MaxToolSeconds int
}

// Run executes one full verifier round: summarize, decompose, run every
// check's mini-agent, judge, apply the SCOUT cap, and format feedback.
func (v *Verifier) Run(ctx context.Context, task, answer string) (*Decision, error) {
	summary, err := Summarize(v.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("verifier: summarize: %w", err)
	}

	checks, err := Decompose(ctx, v.Client, task, answer, summary)
	if err != nil {
		return nil, fmt.Errorf("verifier: decompose: %w", err)
	}

	v.Trace.Emit(trace.KindVerifier, -1, map[string]any{"phase": "decompose", "checks": len(checks)})

	results := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		r := RunCheck(ctx, v.Client, v.Backend, v.Sandbox, v.Trace, c, v.MiniSteps, v.LoopKillerN, v.MaxToolSeconds)
		results = append(results, r)
		v.Trace.Emit(trace.KindVerifier, -1, map[string]any{"phase": "check", "kind": c.Kind, "answer": r.Answer})
	}

	gradient, judgeErr := Judge(ctx, v.Client, task, answer, summary, results)

	needsCoverage := ledger.IsNegativeClaimTask(task) || ledger.IsNegativeClaimAnswer(answer)
	if judgeErr == nil && gradient != nil {
		ApplySCOUTCap(gradient, results, needsCoverage)
	}

	feedback := FormatFeedback(gradient, results)
	v.Trace.Emit(trace.KindVerifierToAgent, -1, map[string]any{"feedback": feedback})
	if gradient != nil {
		v.Trace.Emit(trace.KindVerifierGradient, -1, map[string]any{"score": gradient.Score, "cap_reasons": gradient.CapReasons})
	}

	accepted := gradient != nil && gradient.Score >= 3
	return &Decision{
		Accepted: accepted,
		Gradient: gradient,
		Feedback: feedback,
		Checks:   results,
	}, nil
}
