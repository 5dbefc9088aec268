package router

import (
	"github.com/zen-systems/chatgate/pkg/intent"
)

// ModelRef identifies the adapter and logical model chosen for a task.
type ModelRef struct {
	ModelID string `json:"model_id"`
	Adapter string `json:"adapter"`
}

// Decision is the per-request routing record: the classified intent, the
// generation target, and the meta-task choices in effect. It is computed
// once per request from a single routing snapshot and never mutated or
// shared across requests.
type Decision struct {
	Intent          intent.Intent     `json:"intent"`
	RequiresPrivacy bool              `json:"requires_privacy"`
	Generation      ModelRef          `json:"generation"`
	Classification  intent.Result     `json:"classification"`
	MetaTasks       map[string]string `json:"meta_tasks"`
	Overridden      bool              `json:"overridden"`
	ConfigVersion   uint64            `json:"config_version"`
	Reasons         []string          `json:"reasons,omitempty"`
}
