package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zen-systems/chatgate/pkg/adapter"
	"github.com/zen-systems/chatgate/pkg/config"
	"github.com/zen-systems/chatgate/pkg/intent"
	"github.com/zen-systems/chatgate/pkg/mediator"
	"github.com/zen-systems/chatgate/pkg/router"
	"github.com/zen-systems/chatgate/pkg/security"
)

func newTestServer(t *testing.T, mock *adapter.MockAdapter) (*Server, *adapter.Registry) {
	t.Helper()
	reg := adapter.NewRegistry()
	reg.RegisterAdapter(mock.WithName("ollama"))
	if err := reg.Register(adapter.ModelDescriptor{
		ID: "mistral:latest", Provider: "ollama", Kind: adapter.KindRuntime, Local: true, Online: true,
	}); err != nil {
		t.Fatal(err)
	}

	store := config.OpenRoutingStore(filepath.Join(t.TempDir(), "routing.json"), nil)
	classifier := intent.NewClassifier(reg, nil)
	rt := router.New(reg, classifier, "mistral:latest", nil)
	validator := security.NewValidator(reg, "", nil)
	redactor := security.NewRedactor(reg, nil)
	med := mediator.New(reg, rt, validator, redactor, store, nil)

	return New(":0", med, reg, store, nil), reg
}

func postJSON(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestQueryEndpoint(t *testing.T) {
	s, _ := newTestServer(t, adapter.NewMockAdapterWithResponses(map[string]string{
		"what time is it": "It is noon.",
	}, ""))

	rec := postJSON(t, s, "/query", `{"text":"what time is it"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status  string `json:"status"`
		Answer  string `json:"answer"`
		Routing struct {
			Intent string `json:"intent"`
			Model  string `json:"model"`
		} `json:"routing"`
		Security struct {
			IsSafe bool `json:"is_safe"`
		} `json:"security"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Answer != "It is noon." {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Routing.Model != "mistral:latest" {
		t.Fatalf("unexpected routing: %+v", resp.Routing)
	}
	if !resp.Security.IsSafe {
		t.Fatal("expected safe verdict")
	}
}

func TestQueryBlockedIsHTTPOK(t *testing.T) {
	s, _ := newTestServer(t, adapter.NewMockAdapterWithResponses(map[string]string{
		"clean my disk": "Run `rm -rf /` to free space.",
	}, ""))

	rec := postJSON(t, s, "/query", `{"text":"clean my disk"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("a block is a valid outcome, got %d", rec.Code)
	}

	var resp struct {
		Status   string `json:"status"`
		Answer   string `json:"answer"`
		Security struct {
			IsSafe bool   `json:"is_safe"`
			Reason string `json:"reason"`
		} `json:"security"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "blocked" || resp.Answer != "" {
		t.Fatalf("blocked answer leaked: %+v", resp)
	}
	if resp.Security.IsSafe || resp.Security.Reason == "" {
		t.Fatalf("expected verdict with reason: %+v", resp)
	}
}

func TestQueryMissingText(t *testing.T) {
	s, _ := newTestServer(t, adapter.NewMockAdapter())
	if rec := postJSON(t, s, "/query", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueryRoutingFailureIs503(t *testing.T) {
	s, reg := newTestServer(t, adapter.NewMockAdapter())
	reg.SetOnline("mistral:latest", false)

	rec := postJSON(t, s, "/query", `{"text":"keep this secret"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStreamEndpoint(t *testing.T) {
	s, _ := newTestServer(t, adapter.NewMockAdapterWithResponses(map[string]string{
		"tell me about go": "Go is a statically typed language.",
	}, ""))

	rec := postJSON(t, s, "/query/stream", `{"text":"tell me about go"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var chunks []string
	var final *struct {
		Status string `json:"status"`
		Answer string `json:"answer"`
	}
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev struct {
			Chunk string `json:"chunk"`
			Done  bool   `json:"done"`
			Final *struct {
				Status string `json:"status"`
				Answer string `json:"answer"`
			} `json:"final"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		if ev.Error != "" {
			t.Fatalf("unexpected stream error: %s", ev.Error)
		}
		if ev.Done {
			final = ev.Final
			continue
		}
		chunks = append(chunks, ev.Chunk)
	}

	if final == nil {
		t.Fatal("missing terminal event")
	}
	if final.Answer != "Go is a statically typed language." || final.Status != "ok" {
		t.Fatalf("unexpected final event: %+v", final)
	}
	if joined := strings.Join(chunks, ""); joined != final.Answer {
		t.Fatalf("chunks diverge from final answer: %q", joined)
	}
}

func TestStreamBlockedTerminalEvent(t *testing.T) {
	s, _ := newTestServer(t, adapter.NewMockAdapterWithResponses(map[string]string{
		"clean my disk": "Run `rm -rf /` now.",
	}, ""))

	rec := postJSON(t, s, "/query/stream", `{"text":"clean my disk"}`)
	body := rec.Body.String()
	if !strings.Contains(body, `"done":true`) {
		t.Fatal("missing terminal event")
	}
	if !strings.Contains(body, `"status":"blocked"`) {
		t.Fatalf("terminal event must carry the block: %s", body)
	}
}

func TestRoutingConfigRoundTrip(t *testing.T) {
	s, _ := newTestServer(t, adapter.NewMockAdapter())

	rec := getPath(t, s, "/api/config/routing")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status %d", rec.Code)
	}
	var view struct {
		Version uint64            `json:"version"`
		Routing map[string]string `json:"routing"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	for _, task := range config.MetaTasks {
		if view.Routing[task] != "auto" {
			t.Fatalf("expected auto for %s, got %q", task, view.Routing[task])
		}
	}

	rec = postJSON(t, s, "/api/config/routing", `{"security_judge":"mistral:latest"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Routing[config.TaskSecurityJudge] != "mistral:latest" {
		t.Fatalf("override not applied: %+v", view.Routing)
	}
	if view.Version < 2 {
		t.Fatalf("version must advance, got %d", view.Version)
	}
}

func TestRoutingUpdateRejectsUnknownModel(t *testing.T) {
	s, _ := newTestServer(t, adapter.NewMockAdapter())
	rec := postJSON(t, s, "/api/config/routing", `{"security_judge":"ghost-model"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestModelsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, adapter.NewMockAdapter())
	rec := getPath(t, s, "/api/models")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mistral:latest") {
		t.Fatalf("model listing incomplete: %s", rec.Body.String())
	}
}

func TestModesEndpoint(t *testing.T) {
	s, _ := newTestServer(t, adapter.NewMockAdapter())
	rec := getPath(t, s, "/api/modes")
	if !strings.Contains(rec.Body.String(), `"private"`) {
		t.Fatalf("mode listing incomplete: %s", rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, adapter.NewMockAdapter())
	rec := getPath(t, s, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}
