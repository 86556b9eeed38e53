package llm

import (
	"context"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"warden/internal/observability"
)

// OpenAIChatClient implements ChatClient using
// github.com/openai/openai-go/v2 — the SDK the teacher's internal/llm/openai
// package wraps for its own provider. Unlike the teacher's multi-provider
// Provider abstraction (native tool-schema function calling), this client
// exposes only plain chat completions: the control loop's own Parser does
// lenient free-text tool-call extraction, so no structured tool-call
// plumbing is needed here.
type OpenAIChatClient struct {
	client sdk.Client
	model  string
}

// NewOpenAIChatClient builds a client against baseURL (normalized to end in
// /v1) using apiKey for bearer auth.
func NewOpenAIChatClient(baseURL, apiKey, model string) *OpenAIChatClient {
	normalized := normalizeBaseURL(baseURL)
	c := sdk.NewClient(
		option.WithBaseURL(normalized),
		option.WithAPIKey(apiKey),
	)
	return &OpenAIChatClient{client: c, model: model}
}

func normalizeBaseURL(baseURL string) string {
	trimmed := strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(trimmed, "/v1") {
		return trimmed
	}
	return trimmed + "/v1"
}

// Chat issues one chat completion and reports wall-clock latency alongside
// the SDK's usage/finish-reason fields.
func (c *OpenAIChatClient) Chat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (ChatResponse, error) {
	log := observability.LoggerWithTrace(ctx)
	start := time.Now()

	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(c.model),
		Messages:    toSDKMessages(messages),
		Temperature: sdk.Float(temperature),
		MaxTokens:   sdk.Int(int64(maxTokens)),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start).Seconds()
	if err != nil {
		log.Error().Err(err).Float64("latency_s", latency).Msg("chat completion failed")
		return ChatResponse{}, err
	}

	out := ChatResponse{
		Model:          string(resp.Model),
		LatencySeconds: latency,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, choice := range resp.Choices {
		out.Choices = append(out.Choices, Choice{
			Message:      Message{Role: string(choice.Message.Role), Content: choice.Message.Content},
			FinishReason: string(choice.FinishReason),
		})
	}

	log.Debug().Float64("latency_s", latency).Int("choices", len(out.Choices)).Msg("chat completion ok")
	return out, nil
}

func toSDKMessages(messages []Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, sdk.SystemMessage(m.Content))
		case "assistant":
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}
