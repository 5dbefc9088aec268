package mediator

import (
	"strings"
	"testing"
)

func TestExtractAgentFromFencedBlock(t *testing.T) {
	answer := "Sure:\n```python\n# agent_id: log-rotator\n# agent_name: Log Rotator\nrotate()\n```\ndone"
	agent := ExtractAgent(answer)
	if !agent.Valid {
		t.Fatal("expected valid agent")
	}
	if agent.ID != "log-rotator" || agent.Name != "Log Rotator" {
		t.Fatalf("unexpected identity: %+v", agent)
	}
	if !strings.Contains(agent.Code, "rotate()") {
		t.Fatalf("code not extracted: %q", agent.Code)
	}
}

func TestExtractAgentSlugFromName(t *testing.T) {
	answer := "```\n# agent_name: Disk Usage Watcher!\ncheck()\n```"
	agent := ExtractAgent(answer)
	if !agent.Valid {
		t.Fatal("expected valid agent")
	}
	if agent.ID != "disk-usage-watcher" {
		t.Fatalf("expected slug id, got %q", agent.ID)
	}
}

func TestExtractAgentGeneratesFallbackID(t *testing.T) {
	answer := "```\ndo_things()\n```"
	agent := ExtractAgent(answer)
	if !agent.Valid {
		t.Fatal("code without identity comments is still reviewable")
	}
	if agent.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestExtractAgentNoCodeBlock(t *testing.T) {
	agent := ExtractAgent("I cannot write that script.")
	if agent.Valid {
		t.Fatal("no code block means no valid agent")
	}
	if agent.ID == "" {
		t.Fatal("invalid payload still carries an id for correlation")
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Daily Backup":       "daily-backup",
		"  Spaced  Name ":    "spaced--name",
		"Symbols & Stuff!!!": "symbols--stuff",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Fatalf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
