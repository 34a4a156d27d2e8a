package upstream

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIGenerator implements Generator against the OpenAI Chat Completions
// API (or any OpenAI-compatible endpoint via baseURL).
type OpenAIGenerator struct {
	client openai.Client
}

// NewOpenAIGenerator creates an OpenAI text-generation client. The optional
// baseURL parameter overrides the API endpoint (pass "" for the default).
func NewOpenAIGenerator(apiKey, baseURL string) (*OpenAIGenerator, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIGenerator{client: openai.NewClient(opts...)}, nil
}

// Name returns the upstream identifier.
func (g *OpenAIGenerator) Name() string { return "openai" }

// Generate sends a chat completion request and returns the first choice.
func (g *OpenAIGenerator) Generate(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	params := openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    buildOpenAIMessages(req.Messages),
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		TopP:        openai.Float(req.TopP),
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &Error{Upstream: g.Name(), Message: err.Error()}
	}

	result := &ChatResult{
		ID:    completion.ID,
		Model: completion.Model,
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	if len(completion.Choices) > 0 {
		result.Content = completion.Choices[0].Message.Content
		result.FinishReason = string(completion.Choices[0].FinishReason)
	}
	return result, nil
}

func buildOpenAIMessages(msgs []ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
