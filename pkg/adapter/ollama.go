package adapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zen-systems/chatgate/pkg/artifact"
)

// OllamaAdapter implements the Adapter interface for a local Ollama runtime.
// Ollama-served models never send data off the host, so this adapter is the
// target for privacy-constrained routing.
type OllamaAdapter struct {
	baseURL    string
	httpClient *http.Client
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
	Error           string `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaAdapter creates an adapter for the Ollama daemon at baseURL.
// An empty baseURL uses the conventional local default.
func NewOllamaAdapter(baseURL string) *OllamaAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaAdapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the adapter identifier.
func (a *OllamaAdapter) Name() string {
	return "ollama"
}

// Models returns the model tags reported by the local daemon, or nil if it
// is unreachable.
func (a *OllamaAdapter) Models() []string {
	tags, err := a.ListModels(context.Background())
	if err != nil {
		return nil
	}
	return tags
}

// ListModels queries the daemon's tag list.
func (a *OllamaAdapter) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("ollama unreachable: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &AdapterError{Adapter: a.Name(), Status: resp.StatusCode, Err: fmt.Errorf("ollama tags returned status %d", resp.StatusCode)}
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("failed to parse tags: %w", err)}
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Ping reports whether the local daemon is reachable.
func (a *OllamaAdapter) Ping(ctx context.Context) bool {
	_, err := a.ListModels(ctx)
	return err == nil
}

// Generate sends a prompt to the local runtime and returns the full response.
func (a *OllamaAdapter) Generate(ctx context.Context, model string, prompt string) (*Response, error) {
	body, err := a.post(ctx, ollamaGenerateRequest{Model: model, Prompt: prompt, Stream: false})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(raw, &genResp); err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if genResp.Error != "" {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("ollama error: %s", genResp.Error)}
	}

	art := artifact.New(genResp.Response, a.Name(), model, prompt)
	usage := &Usage{
		PromptTokens:     genResp.PromptEvalCount,
		CompletionTokens: genResp.EvalCount,
		TotalTokens:      genResp.PromptEvalCount + genResp.EvalCount,
	}
	return &Response{Artifact: art, Usage: usage}, nil
}

// GenerateStream sends a prompt to the local runtime and emits each chunk
// from the NDJSON stream. The returned Response carries the accumulated text.
func (a *OllamaAdapter) GenerateStream(ctx context.Context, model string, prompt string, emit func(chunk string)) (*Response, error) {
	body, err := a.post(ctx, ollamaGenerateRequest{Model: model, Prompt: prompt, Stream: true})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var full strings.Builder
	var usage Usage

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaGenerateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("failed to parse stream chunk: %w", err)}
		}
		if chunk.Error != "" {
			return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("ollama error: %s", chunk.Error)}
		}
		if chunk.Response != "" {
			full.WriteString(chunk.Response)
			emit(chunk.Response)
		}
		if chunk.Done {
			usage.PromptTokens = chunk.PromptEvalCount
			usage.CompletionTokens = chunk.EvalCount
			usage.TotalTokens = chunk.PromptEvalCount + chunk.EvalCount
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("ollama stream read: %w", err)}
	}

	art := artifact.New(full.String(), a.Name(), model, prompt)
	return &Response{Artifact: art, Usage: &usage}, nil
}

func (a *OllamaAdapter) post(ctx context.Context, reqBody ollamaGenerateRequest) (io.ReadCloser, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("ollama unreachable: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var genResp ollamaGenerateResponse
		_ = json.Unmarshal(raw, &genResp)
		msg := genResp.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, &AdapterError{Adapter: a.Name(), Status: resp.StatusCode, Err: fmt.Errorf("ollama generate failed: %s", msg)}
	}
	return resp.Body, nil
}
