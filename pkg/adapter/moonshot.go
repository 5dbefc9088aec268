package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/zen-systems/chatgate/pkg/artifact"
)

const moonshotBaseURL = "https://api.moonshot.ai/v1"

// MoonshotAdapter implements the Adapter interface for Moonshot/Kimi models.
// Moonshot uses an OpenAI-compatible API format.
type MoonshotAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// moonshotRequest represents the OpenAI-compatible request format.
type moonshotRequest struct {
	Model       string            `json:"model"`
	Messages    []moonshotMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

// moonshotMessage represents a chat message.
type moonshotMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// moonshotResponse represents the OpenAI-compatible response format.
type moonshotResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewMoonshotAdapter creates a new Moonshot adapter.
func NewMoonshotAdapter(apiKey string) (*MoonshotAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("moonshot API key is required")
	}

	return &MoonshotAdapter{
		apiKey:     apiKey,
		baseURL:    moonshotBaseURL,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the adapter identifier.
func (a *MoonshotAdapter) Name() string {
	return "moonshot"
}

// Models returns the list of supported Moonshot models.
func (a *MoonshotAdapter) Models() []string {
	return []string{
		"moonshot-v1-8k",
		"moonshot-v1-32k",
		"moonshot-v1-128k",
		"kimi-k2-turbo-preview",
	}
}

// Generate sends a prompt to Moonshot and returns the full response.
func (a *MoonshotAdapter) Generate(ctx context.Context, model string, prompt string) (*Response, error) {
	reqBody := moonshotRequest{
		Model: model,
		Messages: []moonshotMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   4096,
		Temperature: 0.3,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("moonshot API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var moonshotResp moonshotResponse
	if err := json.Unmarshal(body, &moonshotResp); err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Status: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if moonshotResp.Error != nil {
		return nil, &AdapterError{Adapter: a.Name(), Status: resp.StatusCode, Err: fmt.Errorf("moonshot API error: %s (type: %s)", moonshotResp.Error.Message, moonshotResp.Error.Type)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &AdapterError{Adapter: a.Name(), Status: resp.StatusCode, Err: fmt.Errorf("moonshot API returned status %d", resp.StatusCode)}
	}

	if len(moonshotResp.Choices) == 0 {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("moonshot returned no choices")}
	}

	content := moonshotResp.Choices[0].Message.Content
	art := artifact.New(content, a.Name(), model, prompt)
	usage := &Usage{
		PromptTokens:     moonshotResp.Usage.PromptTokens,
		CompletionTokens: moonshotResp.Usage.CompletionTokens,
		TotalTokens:      moonshotResp.Usage.TotalTokens,
	}
	return &Response{Artifact: art, Usage: usage}, nil
}
