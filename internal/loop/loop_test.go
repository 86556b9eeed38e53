package loop

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/config"
	"warden/internal/epistemic"
	"warden/internal/ledger"
	"warden/internal/llm"
	"warden/internal/parser"
	"warden/internal/policy"
	"warden/internal/sandbox"
	"warden/internal/trace"
)

func newTestLoop(t *testing.T) (*Loop, string) {
	t.Helper()
	dir := t.TempDir()
	backend := sandbox.NewFakeBackend()
	sb, err := backend.Start(context.Background(), "", dir, false)
	require.NoError(t, err)

	ledgers, err := ledger.NewLedgers(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledgers.Close() })

	tr, err := trace.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	notes, err := NewNotesWriter(dir)
	require.NoError(t, err)

	cfg := config.Config{
		MaxSteps: 10, ContextMaxChars: 20000, NotesUpdateInterval: 5,
		MaxToolSeconds: 5, MaxVerifierRounds: 8, VerifierMiniSteps: 4, VerifierLoopKillerN: 3,
		SystemRole: "system", Temperature: 0.2,
	}
	engine := &policy.Engine{
		StagnationLimit: 3, FailureEscalationLimit: 3, QueryMutationBudget: 2,
		MoveRepeatLimit: 3, DomainShiftLimit: 2, NegativeClaimMinOfficial: 2,
		NegativeClaimMinIndependent: 1, NegativeClaimThresholdPct: 0.6, MaxSteps: 10,
	}

	l := NewLoop(cfg, engine, &llm.FakeChatClient{}, backend, sb, ledgers, tr, notes, "system prompt")
	return l, dir
}

func TestHandleToolCallsBlocksNotesOverwrite(t *testing.T) {
	l, dir := newTestLoop(t)

	before, err := os.ReadFile(filepath.Join(dir, "notes.md"))
	require.NoError(t, err)

	calls := []parser.ToolCall{{Tool: "shell", Args: map[string]any{"cmd": "cat > /work/notes.md << EOF\nX\nEOF"}}}
	stop := l.handleToolCalls(context.Background(), calls, "")
	assert.Empty(t, stop)

	after, err := os.ReadFile(filepath.Join(dir, "notes.md"))
	require.NoError(t, err)
	assert.Contains(t, string(after), string(before))

	evBytes, err := os.ReadFile(filepath.Join(dir, "evidence.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(evBytes), "notes_overwrite_blocked")
	assert.Contains(t, string(evBytes), `"blocked":true`)
}

func TestHandleToolCallsQueryMutationBudget(t *testing.T) {
	l, _ := newTestLoop(t)
	// Non-empty output, so the calls that run are not classified as
	// empty_response failures.
	l.Backend.(*sandbox.FakeBackend).DefaultResult = sandbox.ExecResult{Output: []byte("results")}

	call := func(q string) []parser.ToolCall {
		return []parser.ToolCall{{Tool: "shell", Args: map[string]any{"cmd": "curl https://duckduckgo.com/?q=" + q}}}
	}

	l.handleToolCalls(context.Background(), call("foo+bar"), "")
	l.handleToolCalls(context.Background(), call("foo+bar"), "")
	l.handleToolCalls(context.Background(), call("baz"), "")

	moveBytes, err := os.ReadFile(filepath.Join(l.Sandbox.WorkDir, "move_ledger.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(moveBytes), `"outcome":"blocked"`)
	assert.Contains(t, string(moveBytes), `"outcome":"ok"`)
}

func TestHandleToolCallsFinalizationLoopStops(t *testing.T) {
	l, _ := newTestLoop(t)
	l.State.ToolCallsMade = 3

	calls := []parser.ToolCall{{Tool: "shell", Args: map[string]any{"cmd": "echo done >> /work/final_report.md"}}}
	var stop string
	for i := 0; i < 3; i++ {
		stop = l.handleToolCalls(context.Background(), calls, "Final answer: done")
	}
	assert.Equal(t, "Final deliverables appear to be written under /work. Stopping to prevent a tool loop.", stop)
}

// TestHandleNoToolCitationContract covers spec scenario 6 (§8): a
// finalization claim that fails the STATUS_UPDATE/EVIDENCE_USED contract
// must be forced to UNRESOLVED with the matching constraint, and the turn
// continues rather than accepting an answer.
func TestHandleNoToolCitationContract(t *testing.T) {
	cases := []struct {
		name           string
		text           string
		wantUnresolved string
	}{
		{
			name:           "missing EVIDENCE_USED",
			text:           "Final answer: it is confirmed. STATUS_UPDATE: VERIFIED",
			wantUnresolved: "Missing EVIDENCE_USED",
		},
		{
			name:           "unknown evidence id",
			text:           "Final answer: it is confirmed. STATUS_UPDATE: VERIFIED EVIDENCE_USED: [ev_9999]",
			wantUnresolved: "Unknown evidence id: ev_9999",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _ := newTestLoop(t)

			answer, accepted, failure := l.handleNoTool(context.Background(), NewTask("is it confirmed"), tc.text, "")
			assert.Empty(t, answer)
			assert.False(t, accepted)
			assert.Empty(t, failure)

			assert.Equal(t, epistemic.Unresolved, l.Epistemic.Status)
			assert.Contains(t, l.Epistemic.Unresolved, tc.wantUnresolved)
		})
	}
}

func TestRunAcceptsAnswerAfterVerifierScoresHigh(t *testing.T) {
	l, _ := newTestLoop(t)
	client := &llm.FakeChatClient{Responses: []llm.ChatResponse{
		{Choices: []llm.Choice{{Message: llm.Message{Content: `{"tool":"shell","args":{"cmd":"curl https://a.gov/x"}}`}}}},
		{Choices: []llm.Choice{{Message: llm.Message{Content: `{"tool":"shell","args":{"cmd":"curl https://b.org/y"}}`}}}},
		{Choices: []llm.Choice{{Message: llm.Message{Content: `{"tool":"shell","args":{"cmd":"curl https://c.net/z"}}`}}}},
		{Choices: []llm.Choice{{Message: llm.Message{Content: "Final answer: it is confirmed. STATUS_UPDATE: VERIFIED EVIDENCE_USED: [ev_0001]"}}}},
		// decompose
		{Choices: []llm.Choice{{Message: llm.Message{Content: `{"checks":[{"kind":"support","claim":"c","question":"q"}]}`}}}},
		// mini-agent: visit two independent domains before answering, so the
		// SCOUT cap's citation-diversity check is satisfied
		{Choices: []llm.Choice{{Message: llm.Message{Content: `{"tool":"shell","args":{"cmd":"curl https://a.gov/x2"}}`}}}},
		{Choices: []llm.Choice{{Message: llm.Message{Content: `{"tool":"shell","args":{"cmd":"curl https://b.org/y2"}}`}}}},
		{Choices: []llm.Choice{{Message: llm.Message{Content: `{"answer":"yes","evidence":[{"type":"url","ref":"https://a.gov/x2"},{"type":"url","ref":"https://b.org/y2"}],"notes":""}`}}}},
		// judge
		{Choices: []llm.Choice{{Message: llm.Message{Content: `{"score":4,"explanation":"solid"}`}}}},
	}}
	l.Client = client
	l.Verify.Client = client

	answer, err := l.Run(context.Background(), NewTask("is it confirmed"))
	require.NoError(t, err)
	assert.Contains(t, answer, "confirmed")
}
