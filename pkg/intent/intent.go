// Package intent classifies user queries into a closed set of goal
// categories that drive model routing.
package intent

import "strings"

// Intent is the user's goal category. The set is closed; the router handles
// every member exhaustively.
type Intent string

const (
	// Speed is a simple question or brief request.
	Speed Intent = "speed"
	// Quality is a request for deep analysis or long-form reasoning.
	Quality Intent = "quality"
	// Coding is programming help, debugging, or script writing.
	Coding Intent = "coding"
	// Finance is budgeting, investments, or financial planning.
	Finance Intent = "finance"
	// Private is a request involving secrets, passwords, or personal data.
	Private Intent = "private"
	// NSFW is adult or unfiltered roleplay content.
	NSFW Intent = "nsfw"
	// CreateAgent is a request to generate new automation code for review.
	CreateAgent Intent = "create_agent"
)

// All returns every intent in classification priority order. The order is
// fixed so tie-breaks are deterministic.
func All() []Intent {
	return []Intent{CreateAgent, Private, NSFW, Coding, Finance, Quality, Speed}
}

// RequiresPrivacy reports whether queries with this intent must never leave
// the host. Privacy-constrained intents route only to local adapters.
func (i Intent) RequiresPrivacy() bool {
	return i == Private || i == NSFW
}

// FromString parses a case-insensitive intent name.
func FromString(s string) (Intent, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, i := range All() {
		if string(i) == name {
			return i, true
		}
	}
	return "", false
}

// Mode describes a caller-selectable chat mode that pins the intent,
// bypassing classification.
type Mode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Intent      Intent `json:"routing"`
}

// Modes returns the built-in mode table.
func Modes() []Mode {
	return []Mode{
		{ID: "general", Name: "General", Description: "Fast everyday answers", Intent: Speed},
		{ID: "deep", Name: "Deep Work", Description: "Thorough long-form analysis", Intent: Quality},
		{ID: "coding", Name: "Coding", Description: "Programming and debugging", Intent: Coding},
		{ID: "finance", Name: "Finance", Description: "Budgets and investments", Intent: Finance},
		{ID: "private", Name: "Private", Description: "Local-only, nothing leaves this machine", Intent: Private},
		{ID: "agent", Name: "Agent Builder", Description: "Generate automation agents for review", Intent: CreateAgent},
	}
}

// ModeIntent resolves a mode identifier to its pinned intent.
func ModeIntent(modeID string) (Intent, bool) {
	for _, m := range Modes() {
		if m.ID == modeID {
			return m.Intent, true
		}
	}
	return "", false
}
