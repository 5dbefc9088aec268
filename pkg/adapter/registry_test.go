package adapter

import (
	"testing"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.RegisterAdapter(NewMockAdapter().WithName("remote"))
	r.RegisterAdapter(NewMockAdapter().WithName("ollama"))

	models := []ModelDescriptor{
		{ID: "claude-sonnet", Provider: "remote", APIModel: "claude-3-5-sonnet-20241022", Kind: KindCommercial, Online: true},
		{ID: "llama3:latest", Provider: "ollama", Kind: KindRuntime, Local: true, Online: true},
		{ID: "hermes-roleplay:latest", Provider: "ollama", Kind: KindRuntime, Local: true, Online: false},
	}
	for _, d := range models {
		if err := r.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.ID, err)
		}
	}
	return r
}

func TestRegistryResolve(t *testing.T) {
	r := testRegistry(t)

	a, d, ok := r.Resolve("claude-sonnet")
	if !ok {
		t.Fatal("expected claude-sonnet to resolve")
	}
	if a.Name() != "remote" {
		t.Fatalf("wrong adapter: %s", a.Name())
	}
	if d.APIModel != "claude-3-5-sonnet-20241022" {
		t.Fatalf("wrong api model: %s", d.APIModel)
	}

	if _, _, ok := r.Resolve("nope"); ok {
		t.Fatal("unknown model must not resolve")
	}
}

func TestRegistryRejectsUnknownProvider(t *testing.T) {
	r := NewRegistry()
	err := r.Register(ModelDescriptor{ID: "m", Provider: "ghost"})
	if err == nil {
		t.Fatal("expected error for unregistered provider")
	}
}

func TestRegistryAPIModelDefaultsToID(t *testing.T) {
	r := NewRegistry()
	r.RegisterAdapter(NewMockAdapter().WithName("ollama"))
	if err := r.Register(ModelDescriptor{ID: "mistral:latest", Provider: "ollama", Local: true}); err != nil {
		t.Fatalf("register: %v", err)
	}
	d, _ := r.Descriptor("mistral:latest")
	if d.APIModel != "mistral:latest" {
		t.Fatalf("expected APIModel to default to ID, got %q", d.APIModel)
	}
}

func TestRegistryLocalOnline(t *testing.T) {
	r := testRegistry(t)

	local := r.LocalOnline()
	if len(local) != 1 || local[0].ID != "llama3:latest" {
		t.Fatalf("unexpected local online set: %+v", local)
	}

	r.SetOnline("hermes-roleplay:latest", true)
	local = r.LocalOnline()
	if len(local) != 2 {
		t.Fatalf("expected 2 local online models, got %d", len(local))
	}
	// Registration order is preserved.
	if local[0].ID != "llama3:latest" || local[1].ID != "hermes-roleplay:latest" {
		t.Fatalf("unexpected order: %+v", local)
	}

	r.SetOnline("llama3:latest", false)
	local = r.LocalOnline()
	if len(local) != 1 || local[0].ID != "hermes-roleplay:latest" {
		t.Fatalf("unexpected local online set after offline: %+v", local)
	}
}
