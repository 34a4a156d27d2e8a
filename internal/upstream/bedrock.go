package upstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockGenerator implements Generator against Anthropic Claude models on
// AWS Bedrock via the runtime InvokeModel API. Credentials come from the
// standard AWS credential chain.
type BedrockGenerator struct {
	client *bedrockruntime.Client
	region string
}

// NewBedrockGenerator creates a Bedrock text-generation client.
// region defaults to us-east-1.
func NewBedrockGenerator(region string) (*BedrockGenerator, error) {
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockGenerator{
		client: bedrockruntime.NewFromConfig(cfg),
		region: region,
	}, nil
}

// Name returns the upstream identifier.
func (g *BedrockGenerator) Name() string { return "bedrock" }

type bedrockAnthropicRequest struct {
	AnthropicVersion string        `json:"anthropic_version"`
	MaxTokens        int           `json:"max_tokens"`
	Messages         []ChatMessage `json:"messages"`
	Temperature      *float64      `json:"temperature,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	System           string        `json:"system,omitempty"`
}

type bedrockAnthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate invokes a Claude model on Bedrock and returns the completion.
func (g *BedrockGenerator) Generate(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	// Bedrock's Anthropic schema takes system text out of band.
	var system string
	messages := make([]ChatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			if system != "" {
				system += "\n"
			}
			system += msg.Content
			continue
		}
		messages = append(messages, msg)
	}

	temperature := req.Temperature
	topP := req.TopP
	body, err := json.Marshal(bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        req.MaxTokens,
		Messages:         messages,
		Temperature:      &temperature,
		TopP:             &topP,
		System:           system,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := g.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, &Error{Upstream: g.Name(), Message: err.Error()}
	}

	var resp bedrockAnthropicResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return nil, &Error{Upstream: g.Name(), Message: "failed to decode response: " + err.Error()}
	}

	text := ""
	for _, c := range resp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}

	return &ChatResult{
		ID:           resp.ID,
		Model:        req.Model,
		Content:      text,
		FinishReason: resp.StopReason,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
