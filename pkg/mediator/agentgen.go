package mediator

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Agent is a generated automation script extracted from a model answer.
// The code is review-only material; nothing in the pipeline executes it.
type Agent struct {
	ID    string `json:"agent_id"`
	Name  string `json:"agent_name"`
	Code  string `json:"code"`
	Valid bool   `json:"valid"`
}

var (
	fenceRe     = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n(.*?)```")
	agentIDRe   = regexp.MustCompile(`(?m)^#\s*agent_id:\s*(\S+)`)
	agentNameRe = regexp.MustCompile(`(?m)^#\s*agent_name:\s*(.+)$`)
	slugStripRe = regexp.MustCompile(`[^a-z0-9-]+`)
)

// ExtractAgent pulls the first fenced code block out of a generated answer
// and reads the agent identity comments from it. A missing or empty block
// yields an invalid payload rather than an error; the caller still gets
// the answer text and can retry.
func ExtractAgent(answer string) *Agent {
	match := fenceRe.FindStringSubmatch(answer)
	if match == nil {
		return &Agent{ID: uuid.NewString(), Valid: false}
	}
	code := strings.TrimSpace(match[1])
	if code == "" {
		return &Agent{ID: uuid.NewString(), Valid: false}
	}

	agent := &Agent{Code: code, Valid: true}
	if m := agentNameRe.FindStringSubmatch(code); m != nil {
		agent.Name = strings.TrimSpace(m[1])
	}
	if m := agentIDRe.FindStringSubmatch(code); m != nil {
		agent.ID = m[1]
	} else if agent.Name != "" {
		agent.ID = slugify(agent.Name)
	}
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	return agent
}

// slugify lowercases a name into a hyphenated identifier.
func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = slugStripRe.ReplaceAllString(s, "")
	return strings.Trim(s, "-")
}

// agentPrompt wraps a user request so the model emits one self-contained,
// reviewable script with identity comments the extractor can read.
func agentPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("Write a single self-contained automation script for the following request.\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("1. Put the entire script inside one fenced code block.\n")
	sb.WriteString("2. The first two lines of the script must be comments of the form:\n")
	sb.WriteString("   # agent_id: <short-kebab-case-id>\n")
	sb.WriteString("   # agent_name: <human readable name>\n")
	sb.WriteString("3. The script must not require credentials or network access beyond what the request names.\n")
	sb.WriteString("4. After the code block, add one short paragraph describing what the script does.\n\n")
	sb.WriteString("Request: ")
	sb.WriteString(text)
	return sb.String()
}
