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

func TestRunCheckToolCallThenAnswer(t *testing.T) {
	backend := sandbox.NewFakeBackend()
	sb, err := backend.Start(context.Background(), "", t.TempDir(), false)
	require.NoError(t, err)

	tr, err := trace.Open(sb.WorkDir)
	require.NoError(t, err)
	defer tr.Close()

	client := &llm.FakeChatClient{Responses: []llm.ChatResponse{
		{Choices: []llm.Choice{{Message: llm.Message{Content: `{"tool":"shell","args":{"cmd":"curl https://example.gov/page"}}`}}}},
		{Choices: []llm.Choice{{Message: llm.Message{Content: `{"answer":"yes","evidence":[{"type":"url","ref":"https://example.gov/page","snippet":"confirmed"}],"notes":"ok"}`}}}},
	}}

	check := Check{Kind: "support", Claim: "x is true", Question: "is x true?"}
	result := RunCheck(context.Background(), client, backend, sb, tr, check, 4, 3, 5)

	assert.Equal(t, "yes", result.Answer)
	assert.Contains(t, result.Domains, "example.gov")
	assert.False(t, result.Failed)
}

func TestRunCheckLoopKillerShortCircuits(t *testing.T) {
	backend := sandbox.NewFakeBackend()
	backend.DefaultResult = sandbox.ExecResult{ExitCode: 1, Output: []byte("boom")}
	sb, err := backend.Start(context.Background(), "", t.TempDir(), false)
	require.NoError(t, err)

	tr, err := trace.Open(sb.WorkDir)
	require.NoError(t, err)
	defer tr.Close()

	resp := llm.ChatResponse{Choices: []llm.Choice{{Message: llm.Message{Content: `{"tool":"shell","args":{"cmd":"curl https://example.com/fail"}}`}}}}
	client := &llm.FakeChatClient{Responses: []llm.ChatResponse{resp, resp, resp, resp}, Default: resp}

	check := Check{Kind: "support", Claim: "x", Question: "y"}
	result := RunCheck(context.Background(), client, backend, sb, tr, check, 10, 3, 5)

	assert.Equal(t, "unknown", result.Answer)
	assert.Equal(t, "loop-killer", result.Notes)
}

func TestRunCheckStepLimitReached(t *testing.T) {
	backend := sandbox.NewFakeBackend()
	sb, err := backend.Start(context.Background(), "", t.TempDir(), false)
	require.NoError(t, err)

	tr, err := trace.Open(sb.WorkDir)
	require.NoError(t, err)
	defer tr.Close()

	client := &llm.FakeChatClient{Default: llm.ChatResponse{Choices: []llm.Choice{{Message: llm.Message{
		Content: `{"tool":"shell","args":{"cmd":"echo hi"}}`,
	}}}}}

	check := Check{Kind: "support", Claim: "x", Question: "y"}
	result := RunCheck(context.Background(), client, backend, sb, tr, check, 2, 10, 5)

	assert.Equal(t, "unknown", result.Answer)
	assert.Equal(t, "step limit reached", result.Notes)
}
