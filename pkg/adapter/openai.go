package adapter

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/zen-systems/chatgate/pkg/artifact"
)

// OpenAIAdapter implements the Adapter interface for OpenAI models.
type OpenAIAdapter struct {
	client openai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(apiKey string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAdapter{client: client}, nil
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Models returns the list of supported OpenAI models.
func (a *OpenAIAdapter) Models() []string {
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4.1",
	}
}

// Generate sends a prompt to OpenAI and returns the full response.
func (a *OpenAIAdapter) Generate(ctx context.Context, model string, prompt string) (*Response, error) {
	resp, err := a.client.Chat.Completions.New(ctx, a.params(model, prompt))
	if err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("openai API error: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("openai returned no choices")}
	}

	content := resp.Choices[0].Message.Content
	art := artifact.New(content, a.Name(), model, prompt)
	usage := &Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return &Response{Artifact: art, Usage: usage}, nil
}

// GenerateStream sends a prompt to OpenAI and emits content deltas as they
// arrive. The returned Response carries the accumulated completion.
func (a *OpenAIAdapter) GenerateStream(ctx context.Context, model string, prompt string, emit func(chunk string)) (*Response, error) {
	stream := a.client.Chat.Completions.NewStreaming(ctx, a.params(model, prompt))

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			emit(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("openai stream error: %w", err)}
	}

	if len(acc.Choices) == 0 {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("openai stream returned no choices")}
	}

	content := acc.Choices[0].Message.Content
	art := artifact.New(content, a.Name(), model, prompt)
	usage := &Usage{
		PromptTokens:     int(acc.Usage.PromptTokens),
		CompletionTokens: int(acc.Usage.CompletionTokens),
		TotalTokens:      int(acc.Usage.TotalTokens),
	}
	return &Response{Artifact: art, Usage: usage}, nil
}

func (a *OpenAIAdapter) params(model, prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(4096),
	}
}
