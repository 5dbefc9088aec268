package intent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/zen-systems/chatgate/pkg/adapter"
	"github.com/zen-systems/chatgate/pkg/config"
)

// llmThreshold is the heuristic confidence below which an ambiguous query
// is delegated to the configured LLM classifier.
const llmThreshold = 0.65

// llmTimeout bounds the optional LLM classification call. The heuristic
// result is always available as a fallback, so a slow classifier never
// stalls the request.
const llmTimeout = 10 * time.Second

// exemplars holds trigger phrases per intent. Matching is word-bounded and
// case-insensitive.
var exemplars = map[Intent][]string{
	CreateAgent: {
		"create an agent", "build an agent", "make an agent",
		"generate an agent", "new automation", "automation agent",
	},
	Private: {
		"secret", "private", "password", "personal", "confidential",
		"my eyes only", "credentials",
	},
	NSFW: {
		"roleplay", "nsfw", "erp", "erotic", "flirty", "explicit",
	},
	Coding: {
		"code", "python", "script", "debug", "function", "bug",
		"refactor", "javascript", "rust", "compile", "unit test",
		"programming",
	},
	Finance: {
		"money", "stock", "invest", "budget", "crypto", "tax",
		"savings", "wealth", "finance", "portfolio",
	},
	Quality: {
		"in detail", "comprehensive", "deep dive", "thorough",
		"analysis", "step by step", "explain",
	},
}

// Result captures one classification outcome.
type Result struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	UsedLLM    bool    `json:"used_llm"`
	Model      string  `json:"model,omitempty"`
}

// Classifier determines query intent. The primary path is a fast exemplar
// matcher; when a routing override names a classifier model and the
// heuristic is unsure, the call is delegated to that model. LLM failure is
// never fatal; the heuristic result stands.
type Classifier struct {
	registry *adapter.Registry
	logger   *slog.Logger
}

// NewClassifier creates a classifier backed by the adapter registry.
func NewClassifier(registry *adapter.Registry, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{registry: registry, logger: logger}
}

// Classify determines the intent for a query. choice is the operator's
// intent_classification override from the routing snapshot.
func (c *Classifier) Classify(ctx context.Context, query string, choice config.Choice) Result {
	heuristic := Heuristic(query)
	if choice.IsAuto() {
		return heuristic
	}
	if heuristic.Confidence >= llmThreshold {
		return heuristic
	}

	a, desc, ok := c.registry.Resolve(choice.Model())
	if !ok || !desc.Online {
		c.logger.Debug("classifier model unavailable, using heuristic", "model", choice.Model())
		return heuristic
	}

	llmCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	resp, err := a.Generate(llmCtx, desc.APIModel, classifierPrompt(query))
	if err != nil {
		c.logger.Debug("llm classification failed, using heuristic", "error", err)
		return heuristic
	}
	if resp == nil || resp.Artifact == nil {
		return heuristic
	}

	picked, ok := parseClassifierResponse(resp.Artifact.Content)
	if !ok {
		c.logger.Debug("llm classification unparseable, using heuristic")
		return heuristic
	}

	return Result{Intent: picked, Confidence: 0.95, UsedLLM: true, Model: choice.Model()}
}

// Heuristic classifies a query with exemplar phrase matching only. It is
// deterministic: ties resolve by the fixed priority order of All.
func Heuristic(query string) Result {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Result{Intent: Speed, Confidence: 1.0}
	}
	lower := strings.ToLower(trimmed)

	var best Intent
	bestScore, secondScore := 0, 0
	for _, in := range All() {
		score := 0
		for _, phrase := range exemplars[in] {
			if containsPhrase(lower, phrase) {
				score++
			}
		}
		if score > bestScore {
			secondScore = bestScore
			bestScore = score
			best = in
		} else if score > secondScore {
			secondScore = score
		}
	}

	if bestScore == 0 {
		// No exemplar signal; fall back to length.
		if len(trimmed) > 200 {
			return Result{Intent: Quality, Confidence: 0.5}
		}
		return Result{Intent: Speed, Confidence: 0.5}
	}

	margin := float64(bestScore-secondScore) / float64(bestScore)
	strength := float64(minInt(bestScore, 3)) / 3.0
	confidence := 0.75*margin + 0.25*strength
	if bestScore >= 2 && secondScore == 0 {
		confidence = maxFloat(confidence, 0.9)
	}

	return Result{Intent: best, Confidence: confidence}
}

func classifierPrompt(query string) string {
	var sb strings.Builder
	sb.WriteString("Classify the following user input into exactly one of these categories:\n")
	sb.WriteString("- PRIVATE: Request for secrets, passwords, or personal data storage.\n")
	sb.WriteString("- NSFW: Erotic roleplay, suggestive content, or adult themes.\n")
	sb.WriteString("- CODING: Programming help, debugging, or script writing.\n")
	sb.WriteString("- FINANCE: Budgeting, investments, or financial planning.\n")
	sb.WriteString("- CREATE_AGENT: Request to build a new automation agent.\n")
	sb.WriteString("- QUALITY: Requests for deep analysis, long explanations, or complex logic.\n")
	sb.WriteString("- SPEED: Simple questions or brief requests.\n\n")
	sb.WriteString("USER INPUT: ")
	sb.WriteString(query)
	sb.WriteString("\n\nRespond ONLY with the category name.")
	return sb.String()
}

func parseClassifierResponse(content string) (Intent, bool) {
	result := strings.ToUpper(strings.TrimSpace(content))
	for _, in := range All() {
		if strings.Contains(result, strings.ToUpper(string(in))) {
			return in, true
		}
	}
	return "", false
}

// containsPhrase checks for a word-bounded occurrence of phrase.
func containsPhrase(text, phrase string) bool {
	idx := strings.Index(text, phrase)
	if idx == -1 {
		return false
	}
	if idx > 0 && isWordChar(text[idx-1]) {
		return false
	}
	end := idx + len(phrase)
	if end < len(text) && isWordChar(text[end]) {
		return false
	}
	return true
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
