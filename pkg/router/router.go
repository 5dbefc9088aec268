// Package router turns a query plus operator overrides into a routing
// decision: which intent the query serves and which model generates the
// answer. Privacy-constrained intents are pinned to local adapters.
package router

import (
	"context"
	"log/slog"

	"github.com/zen-systems/chatgate/pkg/adapter"
	"github.com/zen-systems/chatgate/pkg/config"
	"github.com/zen-systems/chatgate/pkg/intent"
)

// generationPreferences lists candidate model identifiers per intent, best
// first. Selection is deterministic: the first online candidate wins, then
// the configured default, then any local online model.
var generationPreferences = map[intent.Intent][]string{
	intent.Speed:       {"mistral:latest", "moonshot-v1-8k"},
	intent.Quality:     {"claude-sonnet-4", "gpt-4o", "gemini-pro"},
	intent.Coding:      {"codellama:7b-instruct", "claude-sonnet-4", "gpt-4.1"},
	intent.Finance:     {"claude-sonnet-4", "gpt-4o"},
	intent.Private:     {"hermes-roleplay:latest"},
	intent.NSFW:        {"hermes-roleplay:latest"},
	intent.CreateAgent: {"claude-sonnet-4", "codellama:7b-instruct"},
}

// Router computes routing decisions against the adapter registry. It holds
// no per-request state; one Router serves all requests concurrently.
type Router struct {
	registry     *adapter.Registry
	classifier   *intent.Classifier
	defaultModel string
	logger       *slog.Logger
}

// New creates a router. defaultModel is the fallback generation model used
// when no intent preference is online, typically the local default.
func New(registry *adapter.Registry, classifier *intent.Classifier, defaultModel string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry:     registry,
		classifier:   classifier,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// Route produces the decision for one query. modelOverride pins the
// generation model directly ("" or "auto" defers to intent routing);
// modeOverride pins the intent via the mode table, bypassing
// classification. snap is the routing snapshot taken at request start.
func (r *Router) Route(ctx context.Context, query, modelOverride, modeOverride string, snap *config.RoutingSnapshot) (*Decision, error) {
	d := &Decision{
		MetaTasks:     snap.Values(),
		ConfigVersion: snap.Version(),
	}

	if in, ok := intent.ModeIntent(modeOverride); modeOverride != "" && ok {
		d.Intent = in
		d.Classification = intent.Result{Intent: in, Confidence: 1.0}
		d.Reasons = append(d.Reasons, "mode override")
	} else {
		if modeOverride != "" {
			r.logger.Warn("unknown mode ignored", "mode", modeOverride)
		}
		d.Classification = r.classifier.Classify(ctx, query, snap.Choice(config.TaskIntentClassification))
		d.Intent = d.Classification.Intent
	}
	d.RequiresPrivacy = d.Intent.RequiresPrivacy()

	if choice := config.ChoiceFrom(modelOverride); !choice.IsAuto() {
		desc, ok := r.registry.Descriptor(choice.Model())
		if !ok {
			return nil, &RoutingError{Reason: "unknown model " + choice.Model()}
		}
		if !desc.Online {
			return nil, &RoutingError{Reason: "model " + choice.Model() + " is offline"}
		}
		if d.RequiresPrivacy && !desc.Local {
			return nil, &RoutingError{Reason: "privacy-constrained query cannot use remote model " + choice.Model()}
		}
		d.Generation = ModelRef{ModelID: desc.ID, Adapter: desc.Provider}
		d.Overridden = true
		d.Reasons = append(d.Reasons, "explicit model override")
		r.logDecision(d)
		return d, nil
	}

	desc, err := r.selectGeneration(d.Intent)
	if err != nil {
		return nil, err
	}
	d.Generation = ModelRef{ModelID: desc.ID, Adapter: desc.Provider}
	r.logDecision(d)
	return d, nil
}

// selectGeneration picks the generation model for an intent. For
// privacy-constrained intents only local adapters are candidates; if none
// is online the request fails rather than falling back to a remote.
func (r *Router) selectGeneration(in intent.Intent) (adapter.ModelDescriptor, error) {
	for _, id := range generationPreferences[in] {
		desc, ok := r.registry.Descriptor(id)
		if !ok || !desc.Online {
			continue
		}
		if in.RequiresPrivacy() && !desc.Local {
			continue
		}
		return desc, nil
	}

	if in.RequiresPrivacy() {
		if local := r.registry.LocalOnline(); len(local) > 0 {
			return local[0], nil
		}
		return adapter.ModelDescriptor{}, &RoutingError{
			Reason: "no local adapter online for privacy-constrained intent " + string(in),
		}
	}

	if desc, ok := r.registry.Descriptor(r.defaultModel); ok && desc.Online {
		return desc, nil
	}
	if local := r.registry.LocalOnline(); len(local) > 0 {
		return local[0], nil
	}
	return adapter.ModelDescriptor{}, &RoutingError{Reason: "no adapter online for intent " + string(in)}
}

func (r *Router) logDecision(d *Decision) {
	r.logger.Info("routing decision",
		"intent", string(d.Intent),
		"model", d.Generation.ModelID,
		"adapter", d.Generation.Adapter,
		"private", d.RequiresPrivacy,
		"overridden", d.Overridden,
		"config_version", d.ConfigVersion,
	)
}
