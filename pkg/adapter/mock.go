package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/zen-systems/chatgate/pkg/artifact"
)

// MockAdapter returns deterministic responses for local runs and tests.
// It implements Streamer by splitting the buffered response into word
// chunks, so streaming and buffered calls produce identical final text.
type MockAdapter struct {
	name            string
	responses       map[string]string
	defaultResponse string
	err             error
	Usage           *Usage
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		name:            "mock",
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined
// per-prompt responses.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	return &MockAdapter{name: "mock", responses: responses, defaultResponse: defaultResponse}
}

// NewFailingMockAdapter creates a mock adapter whose calls all fail with err.
func NewFailingMockAdapter(err error) *MockAdapter {
	return &MockAdapter{name: "mock", responses: make(map[string]string), err: err}
}

// WithName overrides the adapter identifier, so one test can register
// several mocks under different provider names.
func (a *MockAdapter) WithName(name string) *MockAdapter {
	a.name = name
	return a
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return a.name
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Generate returns a deterministic response for the prompt.
func (a *MockAdapter) Generate(_ context.Context, model string, prompt string) (*Response, error) {
	if a.err != nil {
		return nil, &AdapterError{Adapter: a.name, Err: a.err}
	}
	if model == "" {
		model = "mock-1"
	}
	content := a.content(prompt)
	art := artifact.New(content, a.Name(), model, prompt)
	return &Response{Artifact: art, Usage: a.Usage}, nil
}

// GenerateStream emits the deterministic response word by word, then
// returns the same Response that Generate would.
func (a *MockAdapter) GenerateStream(ctx context.Context, model string, prompt string, emit func(chunk string)) (*Response, error) {
	if a.err != nil {
		return nil, &AdapterError{Adapter: a.name, Err: a.err}
	}
	content := a.content(prompt)
	words := strings.SplitAfter(content, " ")
	for _, w := range words {
		if w != "" {
			emit(w)
		}
	}
	return a.Generate(ctx, model, prompt)
}

func (a *MockAdapter) content(prompt string) string {
	if response, ok := a.responses[prompt]; ok {
		return response
	}
	return fmt.Sprintf("%s\n%s", a.defaultResponse, prompt)
}
