package adapter

import (
	"fmt"
	"sync"
)

// ModelKind describes where a model runs.
type ModelKind string

const (
	// KindCommercial is a remote provider API.
	KindCommercial ModelKind = "commercial"
	// KindRuntime is a daemon-hosted local runtime such as Ollama.
	KindRuntime ModelKind = "runtime"
	// KindResident is a model loaded in-process.
	KindResident ModelKind = "resident"
)

// ModelDescriptor holds capability metadata for one logical model. Local
// reports whether prompts stay on the host; privacy-constrained routing
// only considers descriptors with Local set.
type ModelDescriptor struct {
	ID            string    `json:"id"`
	Provider      string    `json:"provider"`
	APIModel      string    `json:"api_model"`
	DisplayName   string    `json:"name"`
	ContextWindow string    `json:"context_window,omitempty"`
	Kind          ModelKind `json:"kind"`
	Local         bool      `json:"local"`
	Online        bool      `json:"online"`
}

// Registry resolves logical model identifiers to adapters and capability
// metadata. Adapters are registered once at startup; online status may be
// refreshed concurrently with request handling.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	models   map[string]ModelDescriptor
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		models:   make(map[string]ModelDescriptor),
	}
}

// RegisterAdapter adds an adapter under its provider name.
func (r *Registry) RegisterAdapter(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Adapter returns a registered adapter by provider name.
func (r *Registry) Adapter(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Register adds a model descriptor. The descriptor's provider must already
// have an adapter registered.
func (r *Registry) Register(d ModelDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[d.Provider]; !ok {
		return fmt.Errorf("no adapter registered for provider %q", d.Provider)
	}
	if d.APIModel == "" {
		d.APIModel = d.ID
	}
	if _, exists := r.models[d.ID]; !exists {
		r.order = append(r.order, d.ID)
	}
	r.models[d.ID] = d
	return nil
}

// Resolve maps a logical model identifier to its adapter and descriptor.
func (r *Registry) Resolve(modelID string) (Adapter, ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.models[modelID]
	if !ok {
		return nil, ModelDescriptor{}, false
	}
	a, ok := r.adapters[d.Provider]
	if !ok {
		return nil, ModelDescriptor{}, false
	}
	return a, d, true
}

// Descriptor returns the metadata for a model identifier.
func (r *Registry) Descriptor(modelID string) (ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.models[modelID]
	return d, ok
}

// Descriptors returns all model descriptors in registration order.
func (r *Registry) Descriptors() []ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}

// SetOnline updates a model's online status.
func (r *Registry) SetOnline(modelID string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.models[modelID]; ok {
		d.Online = online
		r.models[modelID] = d
	}
}

// LocalOnline returns local models currently online, in registration order.
func (r *Registry) LocalOnline() []ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ModelDescriptor
	for _, id := range r.order {
		d := r.models[id]
		if d.Local && d.Online {
			out = append(out, d)
		}
	}
	return out
}
