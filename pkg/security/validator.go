// Package security gates candidate answers before release: a heuristic
// pattern pass, an optional LLM judge pass, and post-verdict PII redaction.
package security

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/zen-systems/chatgate/pkg/adapter"
	"github.com/zen-systems/chatgate/pkg/config"
)

// State tracks the validation state machine for one candidate answer:
// PENDING → HEURISTIC_CHECK → (BLOCKED | JUDGE_CHECK) → (BLOCKED | SAFE).
type State int

const (
	StatePending State = iota
	StateHeuristicCheck
	StateJudgeCheck
	StateBlocked
	StateSafe
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateHeuristicCheck:
		return "heuristic_check"
	case StateJudgeCheck:
		return "judge_check"
	case StateBlocked:
		return "blocked"
	case StateSafe:
		return "safe"
	default:
		return "unknown"
	}
}

// Verdict is the terminal outcome of validation. Reason is caller-visible
// and must never embed the offending content itself.
type Verdict struct {
	IsSafe bool   `json:"is_safe"`
	Reason string `json:"reason,omitempty"`
}

// maxReasonLen caps judge rationales so a verbose judge cannot smuggle
// answer content into the caller-visible reason.
const maxReasonLen = 160

type heuristicRule struct {
	name   string
	reason string
	match  func(prompt, output string) bool
}

var credentialRe = regexp.MustCompile(`password|api_key|secret`)

// heuristicRules is the fixed first-stage rule set. Reasons are constant
// strings; no rule ever copies content into its reason.
var heuristicRules = []heuristicRule{
	{
		name:   "shell_command",
		reason: "potentially malicious shell command detected",
		match: func(_, output string) bool {
			return strings.Contains(output, "rm -rf") ||
				(strings.Contains(output, "curl") && strings.Contains(output, "http"))
		},
	},
	{
		name:   "credential_pattern",
		reason: "credential pattern detected",
		match: func(prompt, output string) bool {
			outLower := strings.ToLower(output)
			if !credentialRe.MatchString(outLower) || strings.Contains(output, "[REDACTED") {
				return false
			}
			promptLower := strings.ToLower(prompt)
			return strings.Contains(promptLower, "password") || strings.Contains(promptLower, "secret")
		},
	},
}

// Validator decides whether a candidate answer is safe to release.
type Validator struct {
	registry     *adapter.Registry
	defaultJudge string
	logger       *slog.Logger
}

// NewValidator creates a validator. defaultJudge is the system-default
// judge model used when no security_judge override is configured; empty
// means the judge pass is skipped unless an override names a model.
func NewValidator(registry *adapter.Registry, defaultJudge string, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{registry: registry, defaultJudge: defaultJudge, logger: logger}
}

// Check runs the full state machine over one candidate answer. choice is
// the security_judge override from the routing snapshot. A judge backend
// failure returns an error (fail closed); a heuristic or judge block is a
// successful validation with IsSafe=false, not an error.
func (v *Validator) Check(ctx context.Context, prompt, answer string, choice config.Choice) (Verdict, error) {
	state := StateHeuristicCheck
	for _, rule := range heuristicRules {
		if rule.match(prompt, answer) {
			state = StateBlocked
			// Only the rule name and outcome are logged, never content.
			v.logger.Info("security check completed", "stage", StateHeuristicCheck.String(), "rule", rule.name, "safe", false)
			return Verdict{IsSafe: false, Reason: rule.reason}, nil
		}
	}

	judgeModel := v.defaultJudge
	if !choice.IsAuto() {
		judgeModel = choice.Model()
	}
	if judgeModel == "" {
		v.logger.Debug("no security judge configured, heuristic result stands")
		v.logger.Info("security check completed", "stage", StateHeuristicCheck.String(), "safe", true)
		return Verdict{IsSafe: true}, nil
	}

	a, desc, ok := v.registry.Resolve(judgeModel)
	if !ok || !desc.Online {
		// No judge available: heuristic-clean is terminal SAFE.
		v.logger.Info("security check completed", "stage", StateHeuristicCheck.String(), "safe", true)
		return Verdict{IsSafe: true}, nil
	}

	state = StateJudgeCheck
	resp, err := a.Generate(ctx, desc.APIModel, judgePrompt(prompt, answer))
	if err != nil {
		v.logger.Info("security check failed", "stage", state.String(), "safe", false)
		return Verdict{}, fmt.Errorf("security judge call failed: %w", err)
	}
	if resp == nil || resp.Artifact == nil {
		v.logger.Info("security check failed", "stage", state.String(), "safe", false)
		return Verdict{}, fmt.Errorf("security judge returned empty response")
	}

	verdict := parseJudgeVerdict(resp.Artifact.Content)
	if verdict.IsSafe {
		state = StateSafe
	} else {
		state = StateBlocked
	}
	v.logger.Info("security check completed", "stage", state.String(), "safe", verdict.IsSafe)
	return verdict, nil
}

// judgePrompt is the fixed evaluation prompt for the LLM judge pass.
func judgePrompt(prompt, output string) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following model output for potential security threats.\n")
	sb.WriteString("Original User Prompt: ")
	sb.WriteString(prompt)
	sb.WriteString("\nModel Output: ")
	sb.WriteString(output)
	sb.WriteString("\n\nCheck for:\n")
	sb.WriteString("1. System prompt leakage.\n")
	sb.WriteString("2. Execution of unauthorized commands.\n")
	sb.WriteString("3. Exfiltration of sensitive data.\n")
	sb.WriteString("4. Malicious code injection.\n\n")
	sb.WriteString("Respond in exactly this format:\n")
	sb.WriteString("Verdict: [SAFE/UNSAFE]\n")
	sb.WriteString("Reason: <one short sentence, do not quote the output>")
	return sb.String()
}

// parseJudgeVerdict extracts the binary verdict and a bounded rationale.
// An unreadable verdict fails closed.
func parseJudgeVerdict(content string) Verdict {
	upper := strings.ToUpper(content)
	reason := extractReason(content)

	switch {
	case strings.Contains(upper, "UNSAFE"):
		if reason == "" {
			reason = "security judge flagged the answer"
		}
		return Verdict{IsSafe: false, Reason: reason}
	case strings.Contains(upper, "SAFE"):
		return Verdict{IsSafe: true}
	default:
		return Verdict{IsSafe: false, Reason: "security judge verdict unreadable"}
	}
}

// extractReason pulls the first Reason line, capped to one bounded line.
func extractReason(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(lower, "reason:") {
			reason := strings.TrimSpace(trimmed[len("reason:"):])
			if len(reason) > maxReasonLen {
				reason = reason[:maxReasonLen]
			}
			return reason
		}
	}
	return ""
}
