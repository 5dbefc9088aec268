package mediator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zen-systems/chatgate/pkg/adapter"
	"github.com/zen-systems/chatgate/pkg/artifact"
	"github.com/zen-systems/chatgate/pkg/config"
	"github.com/zen-systems/chatgate/pkg/intent"
	"github.com/zen-systems/chatgate/pkg/router"
	"github.com/zen-systems/chatgate/pkg/security"
)

// fixture wires a full pipeline around one local mock backend.
type fixture struct {
	mediator *Mediator
	registry *adapter.Registry
	store    *config.RoutingStore
}

func newFixture(t *testing.T, mock *adapter.MockAdapter) *fixture {
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

	return &fixture{
		mediator: New(reg, rt, validator, redactor, store, nil),
		registry: reg,
		store:    store,
	}
}

func TestMediateHappyPath(t *testing.T) {
	f := newFixture(t, adapter.NewMockAdapterWithResponses(map[string]string{
		"what time is it": "It is noon.",
	}, ""))

	out, err := f.mediator.Mediate(context.Background(), Request{Text: "what time is it"})
	if err != nil {
		t.Fatalf("mediate: %v", err)
	}
	if out.Status != StatusOK {
		t.Fatalf("expected ok, got %s (%s)", out.Status, out.Security.Reason)
	}
	if out.Answer != "It is noon." {
		t.Fatalf("unexpected answer: %q", out.Answer)
	}
	if out.RequestID == "" {
		t.Fatal("missing request id")
	}
	if out.Routing == nil || out.Routing.Generation.ModelID != "mistral:latest" {
		t.Fatalf("unexpected routing: %+v", out.Routing)
	}
	if out.Artifact == nil || out.Artifact.Content != out.Answer {
		t.Fatal("artifact must carry the delivered text")
	}
}

func TestMediateRedactsAnswer(t *testing.T) {
	f := newFixture(t, adapter.NewMockAdapterWithResponses(map[string]string{
		"contact info please": "Mail jane@example.com for help.",
	}, ""))

	out, err := f.mediator.Mediate(context.Background(), Request{Text: "contact info please"})
	if err != nil {
		t.Fatalf("mediate: %v", err)
	}
	if !strings.Contains(out.Answer, "[REDACTED_EMAIL]") {
		t.Fatalf("expected redacted answer, got %q", out.Answer)
	}
	if strings.Contains(out.Answer, "jane@example.com") {
		t.Fatal("raw address leaked through redaction")
	}
	if out.Redactions != 1 {
		t.Fatalf("expected 1 redaction, got %d", out.Redactions)
	}
}

func TestMediateBlockedAnswerWithheld(t *testing.T) {
	f := newFixture(t, adapter.NewMockAdapterWithResponses(map[string]string{
		"clean my disk": "Run `rm -rf /` to free space.",
	}, ""))

	// A failing redaction backend proves the redactor is never consulted
	// for a blocked answer.
	f.registry.RegisterAdapter(adapter.NewFailingMockAdapter(errors.New("down")).WithName("failmock"))
	if err := f.registry.Register(adapter.ModelDescriptor{
		ID: "scrubber", Provider: "failmock", Local: true, Online: true,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.Update(map[string]string{config.TaskPIIRedactor: "scrubber"}); err != nil {
		t.Fatal(err)
	}

	out, err := f.mediator.Mediate(context.Background(), Request{Text: "clean my disk"})
	if err != nil {
		t.Fatalf("a block is an outcome, not an error: %v", err)
	}
	if out.Status != StatusBlocked {
		t.Fatalf("expected blocked, got %s", out.Status)
	}
	if out.Answer != "" {
		t.Fatalf("blocked answer must be withheld, got %q", out.Answer)
	}
	if out.Security.IsSafe || out.Security.Reason == "" {
		t.Fatalf("blocked outcome must carry the verdict: %+v", out.Security)
	}
}

func TestMediateRedactionFailureIsNotABlock(t *testing.T) {
	f := newFixture(t, adapter.NewMockAdapterWithResponses(map[string]string{
		"hello": "Benign text with jane@example.com inside.",
	}, ""))

	f.registry.RegisterAdapter(adapter.NewFailingMockAdapter(errors.New("down")).WithName("failmock"))
	if err := f.registry.Register(adapter.ModelDescriptor{
		ID: "scrubber", Provider: "failmock", Local: true, Online: true,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.Update(map[string]string{config.TaskPIIRedactor: "scrubber"}); err != nil {
		t.Fatal(err)
	}

	_, err := f.mediator.Mediate(context.Background(), Request{Text: "hello"})
	var redErr *security.RedactionError
	if !errors.As(err, &redErr) {
		t.Fatalf("expected RedactionError, got %v", err)
	}
}

func TestMediateStreamMatchesBuffered(t *testing.T) {
	responses := map[string]string{
		"tell me about go": "Go is a statically typed language.",
	}

	buffered := newFixture(t, adapter.NewMockAdapterWithResponses(responses, ""))
	bufOut, err := buffered.mediator.Mediate(context.Background(), Request{Text: "tell me about go"})
	if err != nil {
		t.Fatalf("buffered: %v", err)
	}

	streamed := newFixture(t, adapter.NewMockAdapterWithResponses(responses, ""))
	var chunks []string
	strOut, err := streamed.mediator.MediateStream(context.Background(), Request{Text: "tell me about go"}, func(c string) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("streamed: %v", err)
	}

	if strOut.Answer != bufOut.Answer {
		t.Fatalf("delivery paths diverge:\nbuffered: %q\nstreamed: %q", bufOut.Answer, strOut.Answer)
	}
	if strOut.Status != bufOut.Status {
		t.Fatalf("status diverges: %s vs %s", strOut.Status, bufOut.Status)
	}
	if joined := strings.Join(chunks, ""); joined != bufOut.Answer {
		t.Fatalf("chunks do not reassemble the answer: %q", joined)
	}
}

func TestMediateStreamBlockSupersedesChunks(t *testing.T) {
	f := newFixture(t, adapter.NewMockAdapterWithResponses(map[string]string{
		"clean my disk": "Run `rm -rf /` now.",
	}, ""))

	var chunks []string
	out, err := f.mediator.MediateStream(context.Background(), Request{Text: "clean my disk"}, func(c string) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("provisional chunks are expected before the verdict")
	}
	if out.Status != StatusBlocked || out.Answer != "" {
		t.Fatalf("terminal outcome must withhold the answer: %+v", out)
	}
}

func TestMediateAgentGeneration(t *testing.T) {
	query := "build me a backup agent"
	answer := "Here you go:\n```python\n# agent_id: daily-backup\n# agent_name: Daily Backup\nprint('backup')\n```\nCopies files nightly."
	f := newFixture(t, adapter.NewMockAdapterWithResponses(map[string]string{
		agentPrompt(query): answer,
	}, ""))

	out, err := f.mediator.Mediate(context.Background(), Request{Text: query, ModeID: "agent"})
	if err != nil {
		t.Fatalf("mediate: %v", err)
	}
	if out.Routing.Intent != intent.CreateAgent {
		t.Fatalf("expected create_agent intent, got %s", out.Routing.Intent)
	}
	if out.Agent == nil || !out.Agent.Valid {
		t.Fatalf("expected a valid agent payload: %+v", out.Agent)
	}
	if out.Agent.ID != "daily-backup" || out.Agent.Name != "Daily Backup" {
		t.Fatalf("unexpected agent identity: %+v", out.Agent)
	}
	if !strings.Contains(out.Agent.Code, "print('backup')") {
		t.Fatalf("agent code not extracted: %q", out.Agent.Code)
	}
}

func TestMediatePersistsReleasedArtifact(t *testing.T) {
	f := newFixture(t, adapter.NewMockAdapterWithResponses(map[string]string{
		"what time is it": "It is noon.",
	}, ""))
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f.mediator.WithArtifactStore(store)

	out, err := f.mediator.Mediate(context.Background(), Request{Text: "what time is it"})
	if err != nil {
		t.Fatalf("mediate: %v", err)
	}

	saved, err := store.Load(out.Artifact.Hash)
	if err != nil {
		t.Fatalf("released artifact must be persisted: %v", err)
	}
	if saved.Content != out.Answer {
		t.Fatalf("persisted content %q != delivered answer %q", saved.Content, out.Answer)
	}
}

func TestMediateRoutingFailurePassesThrough(t *testing.T) {
	f := newFixture(t, adapter.NewMockAdapter())
	f.registry.SetOnline("mistral:latest", false)

	_, err := f.mediator.Mediate(context.Background(), Request{Text: "keep this secret"})
	if !router.IsRoutingError(err) {
		t.Fatalf("expected RoutingError, got %v", err)
	}
}
