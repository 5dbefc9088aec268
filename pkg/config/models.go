package config

import (
	"github.com/zen-systems/chatgate/pkg/adapter"
)

// CommercialModels returns the built-in catalog of commercial model
// descriptors: logical IDs exposed to callers mapped to provider API model
// identifiers. Only models whose provider has a configured API key should
// be registered as online.
func CommercialModels() []adapter.ModelDescriptor {
	return []adapter.ModelDescriptor{
		// Anthropic Claude
		{ID: "claude-haiku", Provider: "anthropic", APIModel: "claude-3-5-haiku-20241022", DisplayName: "Claude 3.5 Haiku", ContextWindow: "200k", Kind: adapter.KindCommercial},
		{ID: "claude-sonnet", Provider: "anthropic", APIModel: "claude-3-5-sonnet-20241022", DisplayName: "Claude 3.5 Sonnet", ContextWindow: "200k", Kind: adapter.KindCommercial},
		{ID: "claude-sonnet-4", Provider: "anthropic", APIModel: "claude-sonnet-4-20250514", DisplayName: "Claude Sonnet 4", ContextWindow: "200k", Kind: adapter.KindCommercial},
		{ID: "claude-opus-4", Provider: "anthropic", APIModel: "claude-opus-4-20250514", DisplayName: "Claude Opus 4", ContextWindow: "200k", Kind: adapter.KindCommercial},

		// OpenAI
		{ID: "gpt-4o", Provider: "openai", APIModel: "gpt-4o", DisplayName: "GPT-4o", ContextWindow: "128k", Kind: adapter.KindCommercial},
		{ID: "gpt-4o-mini", Provider: "openai", APIModel: "gpt-4o-mini", DisplayName: "GPT-4o Mini", ContextWindow: "128k", Kind: adapter.KindCommercial},
		{ID: "gpt-4.1", Provider: "openai", APIModel: "gpt-4.1", DisplayName: "GPT-4.1", ContextWindow: "1M", Kind: adapter.KindCommercial},

		// Google Gemini
		{ID: "gemini-flash", Provider: "google", APIModel: "gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash", ContextWindow: "1M", Kind: adapter.KindCommercial},
		{ID: "gemini-pro", Provider: "google", APIModel: "gemini-2.0-pro", DisplayName: "Gemini 2.0 Pro", ContextWindow: "1M", Kind: adapter.KindCommercial},

		// Moonshot / Kimi
		{ID: "moonshot-v1-8k", Provider: "moonshot", APIModel: "moonshot-v1-8k", DisplayName: "Moonshot V1 8k", ContextWindow: "8k", Kind: adapter.KindCommercial},
		{ID: "moonshot-v1-32k", Provider: "moonshot", APIModel: "moonshot-v1-32k", DisplayName: "Moonshot V1 32k", ContextWindow: "32k", Kind: adapter.KindCommercial},
		{ID: "moonshot-v1-128k", Provider: "moonshot", APIModel: "moonshot-v1-128k", DisplayName: "Moonshot V1 128k", ContextWindow: "128k", Kind: adapter.KindCommercial},
		{ID: "kimi-k2-turbo", Provider: "moonshot", APIModel: "kimi-k2-turbo-preview", DisplayName: "Kimi K2 Turbo", ContextWindow: "128k", Kind: adapter.KindCommercial},
	}
}

// LocalModelDescriptor builds a descriptor for a model served by the local
// runtime. Local models keep prompts on the host and satisfy
// privacy-constrained routing.
func LocalModelDescriptor(tag string, online bool) adapter.ModelDescriptor {
	return adapter.ModelDescriptor{
		ID:          tag,
		Provider:    "ollama",
		APIModel:    tag,
		DisplayName: tag,
		Kind:        adapter.KindRuntime,
		Local:       true,
		Online:      online,
	}
}
