package adapter

import (
	"context"

	"github.com/zen-systems/chatgate/pkg/artifact"
)

// Adapter is the uniform calling contract for one model backend. The
// mediation pipeline treats every backend, commercial or local, through
// this interface and never reaches for provider SDKs directly.
type Adapter interface {
	// Generate sends a prompt to the model and returns the full response.
	Generate(ctx context.Context, model string, prompt string) (*Response, error)

	// Name returns the adapter's provider identifier.
	Name() string

	// Models returns the API model identifiers this adapter can serve.
	Models() []string
}

// Streamer is implemented by adapters that can deliver output incrementally.
// GenerateStream calls emit for each text chunk as it arrives and returns
// the complete accumulated response when the stream ends. Callers that need
// the final text must use the returned Response, not the concatenation of
// chunks, since a mid-stream error can leave the chunks partial.
type Streamer interface {
	GenerateStream(ctx context.Context, model string, prompt string, emit func(chunk string)) (*Response, error)
}

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response wraps an adapter output and optional usage data.
type Response struct {
	Artifact *artifact.Artifact
	Usage    *Usage
}
