// Package llm defines the ChatClient contract (spec section 6) and provides
// an OpenAI-compatible default implementation plus an in-memory fake for
// tests.
package llm

import "context"

// Message is one entry of a chat completion request's history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice is one completion choice returned by the model.
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage mirrors the OpenAI-compatible token accounting fields.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the strictly-typed decode of a chat completion, per spec
// section 9's "strict types with optional/unknown fallback" guidance.
type ChatResponse struct {
	Choices       []Choice `json:"choices"`
	Usage         Usage    `json:"usage"`
	Model         string   `json:"model"`
	LatencySeconds float64 `json:"_latency_s"`
}

// ChatClient is the external collaborator spec section 6 names: an
// OpenAI-compatible chat-completions backend with usage/latency/finish-reason
// reporting. Base URLs are normalized to end in /v1.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (ChatResponse, error)
}
