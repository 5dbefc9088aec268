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

// RedactionError marks a failed redaction attempt. It is distinct from a
// security block: the answer was judged safe but could not be scrubbed, so
// it is withheld (fail closed) with a generic processing error.
type RedactionError struct {
	Err error
}

func (e *RedactionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pii redaction failed: %v", e.Err)
	}
	return "pii redaction failed"
}

func (e *RedactionError) Unwrap() error {
	return e.Err
}

// RedactionResult carries the scrubbed text and per-category counts. The
// original spans are never retained or logged.
type RedactionResult struct {
	Text   string
	Counts map[string]int
}

// Total returns the number of redactions performed.
func (r *RedactionResult) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

type piiPattern struct {
	category string
	token    string
	re       *regexp.Regexp
}

// piiPatterns are applied in order. Replacement tokens contain no digits
// or address characters, so running redaction over already-redacted text
// is a no-op (the patterns cannot match their own output).
var piiPatterns = []piiPattern{
	{"email", "[REDACTED_EMAIL]", regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
	{"id", "[REDACTED_ID]", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"card", "[REDACTED_CARD]", regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
	{"phone", "[REDACTED_PHONE]", regexp.MustCompile(`(?:\+?\d{1,3}[\s.-]?)?(?:\(\d{3}\)|\d{3})[\s.-]\d{3}[\s.-]\d{4}`)},
	{"ip", "[REDACTED_IP]", regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)},
}

// Redactor masks personal data in answers that passed security validation.
// The default path is local pattern rules; a pii_redactor override routes
// the text through a configured model instead.
type Redactor struct {
	registry *adapter.Registry
	logger   *slog.Logger
}

// NewRedactor creates a redactor backed by the adapter registry.
func NewRedactor(registry *adapter.Registry, logger *slog.Logger) *Redactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redactor{registry: registry, logger: logger}
}

// Redact masks personal data in text. choice is the pii_redactor override
// from the routing snapshot; Auto uses the local pattern rules. If a
// configured adapter fails the text is withheld: the caller receives a
// RedactionError, never the unredacted answer.
func (r *Redactor) Redact(ctx context.Context, text string, choice config.Choice) (*RedactionResult, error) {
	if choice.IsAuto() {
		result := redactLocal(text)
		r.logger.Debug("pii redaction completed", "mode", "rules", "redactions", result.Total())
		return result, nil
	}

	a, desc, ok := r.registry.Resolve(choice.Model())
	if !ok || !desc.Online {
		return nil, &RedactionError{Err: fmt.Errorf("redaction model %q unavailable", choice.Model())}
	}

	resp, err := a.Generate(ctx, desc.APIModel, redactorPrompt(text))
	if err != nil {
		return nil, &RedactionError{Err: err}
	}
	if resp == nil || resp.Artifact == nil {
		return nil, &RedactionError{Err: fmt.Errorf("redaction model returned empty response")}
	}

	redacted := strings.TrimSpace(resp.Artifact.Content)
	counts := map[string]int{"llm": strings.Count(redacted, "[REDACTED")}
	r.logger.Debug("pii redaction completed", "mode", "llm", "redactions", counts["llm"])
	return &RedactionResult{Text: redacted, Counts: counts}, nil
}

// redactLocal applies the pattern rules. It is idempotent.
func redactLocal(text string) *RedactionResult {
	counts := make(map[string]int)
	out := text
	for _, p := range piiPatterns {
		out = p.re.ReplaceAllStringFunc(out, func(string) string {
			counts[p.category]++
			return p.token
		})
	}
	return &RedactionResult{Text: out, Counts: counts}
}

func redactorPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("Rewrite the following text, replacing every piece of personal data ")
	sb.WriteString("(names, email addresses, phone numbers, account or ID numbers) with ")
	sb.WriteString("tokens of the form [REDACTED_NAME], [REDACTED_EMAIL], [REDACTED_PHONE], [REDACTED_ID]. ")
	sb.WriteString("Keep everything else exactly as written. Text that is already redacted must be returned unchanged. ")
	sb.WriteString("Return ONLY the rewritten text.\n\n")
	sb.WriteString(text)
	return sb.String()
}
