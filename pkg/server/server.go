// Package server exposes the mediation pipeline over HTTP: buffered and
// streaming query endpoints, the routing override API, and model listings.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zen-systems/chatgate/pkg/adapter"
	"github.com/zen-systems/chatgate/pkg/config"
	"github.com/zen-systems/chatgate/pkg/intent"
	"github.com/zen-systems/chatgate/pkg/mediator"
	"github.com/zen-systems/chatgate/pkg/router"
	"github.com/zen-systems/chatgate/pkg/security"
)

// Server hosts the HTTP API in front of one mediator.
type Server struct {
	mediator *mediator.Mediator
	registry *adapter.Registry
	store    *config.RoutingStore
	logger   *slog.Logger
	httpSrv  *http.Server
}

// New creates a server listening on addr.
func New(addr string, m *mediator.Mediator, registry *adapter.Registry, store *config.RoutingStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mediator: m,
		registry: registry,
		store:    store,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /query/stream", s.handleQueryStream)
	mux.HandleFunc("GET /api/config/routing", s.handleRoutingGet)
	mux.HandleFunc("POST /api/config/routing", s.handleRoutingUpdate)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /api/modes", s.handleModes)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

type routingView struct {
	Intent          string  `json:"intent"`
	Adapter         string  `json:"adapter"`
	Model           string  `json:"model"`
	RequiresPrivacy bool    `json:"requires_privacy"`
	Confidence      float64 `json:"confidence"`
}

type queryResponse struct {
	RequestID  string           `json:"request_id"`
	Status     string           `json:"status"`
	Answer     string           `json:"answer"`
	Routing    routingView      `json:"routing"`
	Security   security.Verdict `json:"security"`
	Redactions int              `json:"redactions"`
	Agent      *mediator.Agent  `json:"agent_generated,omitempty"`
}

func toResponse(out *mediator.Outcome) queryResponse {
	return queryResponse{
		RequestID: out.RequestID,
		Status:    string(out.Status),
		Answer:    out.Answer,
		Routing: routingView{
			Intent:          string(out.Routing.Intent),
			Adapter:         out.Routing.Generation.Adapter,
			Model:           out.Routing.Generation.ModelID,
			RequiresPrivacy: out.Routing.RequiresPrivacy,
			Confidence:      out.Routing.Classification.Confidence,
		},
		Security:   out.Security,
		Redactions: out.Redactions,
		Agent:      out.Agent,
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req mediator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	out, err := s.mediator.Mediate(r.Context(), req)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(out))
}

// streamEvent is one SSE payload. Chunk events are provisional model
// output; the single terminal event with Done set is authoritative and
// supersedes every chunk before it.
type streamEvent struct {
	Chunk string         `json:"chunk,omitempty"`
	Done  bool           `json:"done,omitempty"`
	Final *queryResponse `json:"final,omitempty"`
	Error string         `json:"error,omitempty"`
}

func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req mediator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	out, err := s.mediator.MediateStream(r.Context(), req, func(chunk string) {
		writeSSE(w, flusher, streamEvent{Chunk: chunk})
	})
	if err != nil {
		// Headers are committed; the error travels as a terminal event.
		writeSSE(w, flusher, streamEvent{Done: true, Error: publicError(err)})
		return
	}

	final := toResponse(out)
	writeSSE(w, flusher, streamEvent{Done: true, Final: &final})
}

func (s *Server) handleRoutingGet(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"version": snap.Version(),
		"routing": snap.Values(),
	})
}

func (s *Server) handleRoutingUpdate(w http.ResponseWriter, r *http.Request) {
	var partial map[string]string
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, task := range config.MetaTasks {
		v, ok := partial[task]
		if !ok {
			continue
		}
		choice := config.ChoiceFrom(v)
		if choice.IsAuto() {
			continue
		}
		if _, found := s.registry.Descriptor(choice.Model()); !found {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown model %q for %s", choice.Model(), task))
			return
		}
	}

	snap, err := s.store.Update(partial)
	if err != nil {
		s.logger.Error("routing update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not persist routing config")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version": snap.Version(),
		"routing": snap.Values(),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models": s.registry.Descriptors(),
	})
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"modes": intent.Modes(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	online := 0
	for _, d := range s.registry.Descriptors() {
		if d.Online {
			online++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"models_online": online,
	})
}

// writePipelineError maps pipeline failures onto HTTP statuses without
// leaking internals: routing failures are service-unavailable, backend
// failures are bad-gateway, and redaction failures are a generic error
// because the withheld text must not be described.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var routingErr *router.RoutingError
	var adapterErr *adapter.AdapterError
	var redactionErr *security.RedactionError
	switch {
	case errors.As(err, &routingErr):
		writeError(w, http.StatusServiceUnavailable, routingErr.Reason)
	case errors.As(err, &adapterErr):
		s.logger.Error("backend call failed", "adapter", adapterErr.Adapter, "error", err)
		writeError(w, http.StatusBadGateway, "model backend unavailable")
	case errors.As(err, &redactionErr):
		s.logger.Error("redaction failed", "error", err)
		writeError(w, http.StatusInternalServerError, "answer could not be processed")
	default:
		s.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// publicError is the SSE counterpart of writePipelineError.
func publicError(err error) string {
	var routingErr *router.RoutingError
	var redactionErr *security.RedactionError
	switch {
	case errors.As(err, &routingErr):
		return routingErr.Reason
	case errors.As(err, &redactionErr):
		return "answer could not be processed"
	default:
		return "model backend unavailable"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev streamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
