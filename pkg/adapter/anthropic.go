package adapter

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/zen-systems/chatgate/pkg/artifact"
)

// AnthropicAdapter implements the Adapter interface for Claude models.
type AnthropicAdapter struct {
	client anthropic.Client
}

// NewAnthropicAdapter creates a new Anthropic adapter.
func NewAnthropicAdapter(apiKey string) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicAdapter{client: client}, nil
}

// Name returns the adapter identifier.
func (a *AnthropicAdapter) Name() string {
	return "anthropic"
}

// Models returns the list of supported Claude models.
func (a *AnthropicAdapter) Models() []string {
	return []string{
		"claude-3-5-haiku-20241022",
		"claude-3-5-sonnet-20241022",
		"claude-sonnet-4-20250514",
		"claude-opus-4-20250514",
	}
}

// Generate sends a prompt to Claude and returns the full response.
func (a *AnthropicAdapter) Generate(ctx context.Context, model string, prompt string) (*Response, error) {
	resp, err := a.client.Messages.New(ctx, a.params(model, prompt))
	if err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("anthropic API error: %w", err)}
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	art := artifact.New(content, a.Name(), model, prompt)
	usage := &Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}
	return &Response{Artifact: art, Usage: usage}, nil
}

// GenerateStream sends a prompt to Claude and emits text deltas as they
// arrive. The returned Response carries the complete accumulated message.
func (a *AnthropicAdapter) GenerateStream(ctx context.Context, model string, prompt string, emit func(chunk string)) (*Response, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.params(model, prompt))

	var acc anthropic.Message
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("anthropic stream accumulate: %w", err)}
		}
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				emit(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("anthropic stream error: %w", err)}
	}

	var content string
	for _, block := range acc.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	art := artifact.New(content, a.Name(), model, prompt)
	usage := &Usage{
		PromptTokens:     int(acc.Usage.InputTokens),
		CompletionTokens: int(acc.Usage.OutputTokens),
		TotalTokens:      int(acc.Usage.InputTokens + acc.Usage.OutputTokens),
	}
	return &Response{Artifact: art, Usage: usage}, nil
}

func (a *AnthropicAdapter) params(model, prompt string) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
}
