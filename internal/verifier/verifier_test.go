package verifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/llm"
	"warden/internal/sandbox"
	"warden/internal/trace"
)

func TestVerifierRunAppliesSCOUTCapForSingleDomainCitation(t *testing.T) {
	backend := sandbox.NewFakeBackend()
	workDir := t.TempDir()
	sb, err := backend.Start(context.Background(), "", workDir, false)
	require.NoError(t, err)

	tr, err := trace.Open(workDir)
	require.NoError(t, err)
	defer tr.Close()

	client := &llm.FakeChatClient{Responses: []llm.ChatResponse{
		{Choices: []llm.Choice{{Message: llm.Message{Content: `{"checks":[{"kind":"support","claim":"c","question":"q"}]}`}}}},
		{Choices: []llm.Choice{{Message: llm.Message{Content: `{"answer":"yes","evidence":[{"type":"url","ref":"https://a.gov/x","snippet":"s"}],"notes":""}`}}}},
		{Choices: []llm.Choice{{Message: llm.Message{Content: `{"score":4,"explanation":"well supported"}`}}}},
	}}

	v := &Verifier{
		Client:         client,
		Backend:        backend,
		Sandbox:        sb,
		Trace:          tr,
		WorkDir:        workDir,
		MiniSteps:      4,
		LoopKillerN:    3,
		MaxToolSeconds: 5,
	}

	decision, err := v.Run(context.Background(), "what is the status", "the status is confirmed")
	require.NoError(t, err)
	require.NotNil(t, decision.Gradient)

	assert.False(t, decision.Accepted)
	assert.LessOrEqual(t, decision.Gradient.Score, 2)
	assert.Contains(t, decision.Gradient.CapReasons, "insufficient_independent_citations")
	assert.Contains(t, decision.Feedback, "VERIFIER_GRADIENT_JSON:")
}
