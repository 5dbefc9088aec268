// Package mediator runs the full query pipeline: routing, generation,
// security validation, and PII redaction. Buffered and streaming delivery
// share one finalization path, so both give identical safety guarantees.
package mediator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/zen-systems/chatgate/pkg/adapter"
	"github.com/zen-systems/chatgate/pkg/artifact"
	"github.com/zen-systems/chatgate/pkg/config"
	"github.com/zen-systems/chatgate/pkg/intent"
	"github.com/zen-systems/chatgate/pkg/router"
	"github.com/zen-systems/chatgate/pkg/security"
)

// Request is one user query with optional routing overrides. ModelID and
// ModeID accept "" or "auto" to defer to intent routing.
type Request struct {
	Text      string `json:"text"`
	ModelID   string `json:"model,omitempty"`
	ModeID    string `json:"mode,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Status is the terminal disposition of a mediated request.
type Status string

const (
	// StatusOK means the answer passed validation and was released.
	StatusOK Status = "ok"
	// StatusBlocked means validation withheld the answer.
	StatusBlocked Status = "blocked"
)

// Outcome is the authoritative result of one mediated request. For a
// blocked request Answer is empty; the verdict reason is the only
// caller-visible trace of the withheld content.
type Outcome struct {
	RequestID  string             `json:"request_id"`
	Status     Status             `json:"status"`
	Answer     string             `json:"answer"`
	Routing    *router.Decision   `json:"routing"`
	Security   security.Verdict   `json:"security"`
	Redactions int                `json:"redactions"`
	Usage      *adapter.Usage     `json:"usage,omitempty"`
	Artifact   *artifact.Artifact `json:"-"`
	Agent      *Agent             `json:"agent_generated,omitempty"`
}

// Mediator wires the routing, validation, and redaction stages over the
// adapter registry. It is safe for concurrent use.
type Mediator struct {
	registry  *adapter.Registry
	router    *router.Router
	validator *security.Validator
	redactor  *security.Redactor
	store     *config.RoutingStore
	artifacts *artifact.Store
	logger    *slog.Logger
}

// New creates a mediator.
func New(registry *adapter.Registry, rt *router.Router, validator *security.Validator, redactor *security.Redactor, store *config.RoutingStore, logger *slog.Logger) *Mediator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mediator{
		registry:  registry,
		router:    rt,
		validator: validator,
		redactor:  redactor,
		store:     store,
		logger:    logger,
	}
}

// WithArtifactStore enables persistence of released artifacts. Store
// failures are logged and never fail the request.
func (m *Mediator) WithArtifactStore(store *artifact.Store) *Mediator {
	m.artifacts = store
	return m
}

// Mediate runs the buffered pipeline: route, generate the full answer,
// then validate and redact before anything reaches the caller.
func (m *Mediator) Mediate(ctx context.Context, req Request) (*Outcome, error) {
	requestID := uuid.NewString()
	snap := m.store.Snapshot()

	decision, a, desc, err := m.prepare(ctx, req, snap)
	if err != nil {
		return nil, err
	}

	resp, err := a.Generate(ctx, desc.APIModel, buildPrompt(req.Text, decision.Intent))
	if err != nil {
		return nil, err
	}

	return m.finalize(ctx, requestID, req.Text, resp, decision, snap)
}

// MediateStream runs the streaming pipeline. Chunks passed to emit are
// provisional: they are raw model output, delivered before validation.
// The returned Outcome is authoritative and is produced by the same
// finalization as Mediate; callers must present it as superseding the
// chunks. Backends without streaming support fall back to the buffered
// path and emit nothing.
func (m *Mediator) MediateStream(ctx context.Context, req Request, emit func(chunk string)) (*Outcome, error) {
	requestID := uuid.NewString()
	snap := m.store.Snapshot()

	decision, a, desc, err := m.prepare(ctx, req, snap)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(req.Text, decision.Intent)
	var resp *adapter.Response
	if s, ok := a.(adapter.Streamer); ok {
		resp, err = s.GenerateStream(ctx, desc.APIModel, prompt, emit)
	} else {
		resp, err = a.Generate(ctx, desc.APIModel, prompt)
	}
	if err != nil {
		return nil, err
	}

	return m.finalize(ctx, requestID, req.Text, resp, decision, snap)
}

// prepare routes the request and resolves the generation backend.
func (m *Mediator) prepare(ctx context.Context, req Request, snap *config.RoutingSnapshot) (*router.Decision, adapter.Adapter, adapter.ModelDescriptor, error) {
	decision, err := m.router.Route(ctx, req.Text, req.ModelID, req.ModeID, snap)
	if err != nil {
		return nil, nil, adapter.ModelDescriptor{}, err
	}
	a, desc, ok := m.registry.Resolve(decision.Generation.ModelID)
	if !ok {
		return nil, nil, adapter.ModelDescriptor{}, &router.RoutingError{
			Reason: "routed model " + decision.Generation.ModelID + " not resolvable",
		}
	}
	return decision, a, desc, nil
}

// finalize applies validation and redaction to the complete answer. Both
// delivery paths converge here; nothing is released that did not pass
// through this function.
func (m *Mediator) finalize(ctx context.Context, requestID, query string, resp *adapter.Response, decision *router.Decision, snap *config.RoutingSnapshot) (*Outcome, error) {
	if resp == nil || resp.Artifact == nil {
		return nil, fmt.Errorf("adapter returned empty response")
	}
	answer := resp.Artifact.Content

	verdict, err := m.validator.Check(ctx, query, answer, snap.Choice(config.TaskSecurityJudge))
	if err != nil {
		return nil, err
	}
	if !verdict.IsSafe {
		m.logger.Info("request blocked",
			"request_id", requestID,
			"intent", string(decision.Intent),
			"model", decision.Generation.ModelID,
		)
		return &Outcome{
			RequestID: requestID,
			Status:    StatusBlocked,
			Routing:   decision,
			Security:  verdict,
			Usage:     resp.Usage,
		}, nil
	}

	redacted, err := m.redactor.Redact(ctx, answer, snap.Choice(config.TaskPIIRedactor))
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		RequestID:  requestID,
		Status:     StatusOK,
		Answer:     redacted.Text,
		Routing:    decision,
		Security:   verdict,
		Redactions: redacted.Total(),
		Usage:      resp.Usage,
		Artifact:   resp.Artifact.WithContent(redacted.Text),
	}
	if decision.Intent == intent.CreateAgent {
		out.Agent = ExtractAgent(redacted.Text)
	}
	if m.artifacts != nil {
		if _, serr := m.artifacts.Save(out.Artifact); serr != nil {
			m.logger.Warn("artifact not persisted", "request_id", requestID, "error", serr)
		}
	}

	m.logger.Info("request completed",
		"request_id", requestID,
		"intent", string(decision.Intent),
		"model", decision.Generation.ModelID,
		"redactions", out.Redactions,
	)
	return out, nil
}

// buildPrompt wraps the user text for intents that need scaffolding. Agent
// generation instructs the model to produce reviewable code; everything
// else passes through untouched.
func buildPrompt(text string, in intent.Intent) string {
	if in == intent.CreateAgent {
		return agentPrompt(text)
	}
	return text
}
