package llm

import (
	"context"
	"errors"
)

// FakeChatClient is an in-memory ChatClient double, grounded on the
// teacher's testhelpers FakeProvider pattern, so internal/loop and
// internal/verifier tests never touch a real model endpoint.
type FakeChatClient struct {
	// Responses is consumed in order, one per Chat call. When exhausted,
	// Default is returned instead.
	Responses []ChatResponse
	Default   ChatResponse
	Err       error

	// Calls records every message slice passed to Chat, for assertions.
	Calls [][]Message

	next int
}

func (f *FakeChatClient) Chat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (ChatResponse, error) {
	f.Calls = append(f.Calls, messages)
	if f.Err != nil {
		return ChatResponse{}, f.Err
	}
	if f.next < len(f.Responses) {
		r := f.Responses[f.next]
		f.next++
		return r, nil
	}
	if f.Default.Choices == nil {
		return ChatResponse{}, errors.New("fake chat client: no response configured")
	}
	return f.Default, nil
}
