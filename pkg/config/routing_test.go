package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestChoiceFromAutoSentinel(t *testing.T) {
	cases := []struct {
		value string
		auto  bool
	}{
		{"auto", true},
		{"", true},
		{"llama3:latest", false},
		{"claude-sonnet", false},
	}
	for _, tc := range cases {
		c := ChoiceFrom(tc.value)
		if c.IsAuto() != tc.auto {
			t.Fatalf("ChoiceFrom(%q).IsAuto() = %v, want %v", tc.value, c.IsAuto(), tc.auto)
		}
		if tc.auto && c.Model() != "" {
			t.Fatalf("auto choice must not carry a model, got %q", c.Model())
		}
	}
}

func TestOpenRoutingStoreCreatesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.json")
	s := OpenRoutingStore(path, nil)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected routing file to be created: %v", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("routing file not valid JSON: %v", err)
	}
	if len(raw) != 0 {
		t.Fatalf("expected empty default config, got %v", raw)
	}

	snap := s.Snapshot()
	for _, task := range MetaTasks {
		if !snap.Choice(task).IsAuto() {
			t.Fatalf("task %s should default to auto", task)
		}
	}
}

func TestOpenRoutingStoreCorruptFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := OpenRoutingStore(path, nil)
	snap := s.Snapshot()
	for _, task := range MetaTasks {
		if !snap.Choice(task).IsAuto() {
			t.Fatalf("corrupt file must yield empty config, task %s was %v", task, snap.Choice(task))
		}
	}
}

func TestOpenRoutingStoreIgnoresUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.json")
	content := `{"pii_redactor": "llama3:latest", "mystery_task": "whatever"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s := OpenRoutingStore(path, nil)
	snap := s.Snapshot()
	if snap.Choice(TaskPIIRedactor).Model() != "llama3:latest" {
		t.Fatalf("expected pii_redactor override, got %v", snap.Choice(TaskPIIRedactor))
	}
	if !snap.Choice("mystery_task").IsAuto() {
		t.Fatal("unknown keys must resolve to auto")
	}
}

func TestUpdateMergesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.json")
	s := OpenRoutingStore(path, nil)

	if _, err := s.Update(map[string]string{TaskIntentClassification: "llama3:latest"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.Update(map[string]string{TaskSecurityJudge: "claude-sonnet"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Second update must keep the first override.
	snap := s.Snapshot()
	if snap.Choice(TaskIntentClassification).Model() != "llama3:latest" {
		t.Fatalf("first override lost: %v", snap.Choice(TaskIntentClassification))
	}
	if snap.Choice(TaskSecurityJudge).Model() != "claude-sonnet" {
		t.Fatalf("second override missing: %v", snap.Choice(TaskSecurityJudge))
	}

	// Persisted file holds the full merged map.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw[TaskIntentClassification] != "llama3:latest" || raw[TaskSecurityJudge] != "claude-sonnet" {
		t.Fatalf("unexpected persisted map: %v", raw)
	}

	// Reload sees the same state.
	s2 := OpenRoutingStore(path, nil)
	if s2.Snapshot().Choice(TaskSecurityJudge).Model() != "claude-sonnet" {
		t.Fatal("reload lost persisted override")
	}
}

func TestUpdateAutoResetsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.json")
	s := OpenRoutingStore(path, nil)

	if _, err := s.Update(map[string]string{TaskPIIRedactor: "llama3:latest"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Update(map[string]string{TaskPIIRedactor: "auto"}); err != nil {
		t.Fatal(err)
	}

	if !s.Snapshot().Choice(TaskPIIRedactor).IsAuto() {
		t.Fatal("auto update must clear the override")
	}

	// Cleared overrides are not persisted as literal "auto" model IDs.
	data, _ := os.ReadFile(path)
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw[TaskPIIRedactor]; ok {
		t.Fatalf("auto must not persist a model value: %v", raw)
	}
}

func TestSnapshotIsolationAcrossUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.json")
	s := OpenRoutingStore(path, nil)

	before := s.Snapshot()
	if _, err := s.Update(map[string]string{TaskIntentClassification: "llama3:latest"}); err != nil {
		t.Fatal(err)
	}
	after := s.Snapshot()

	// The snapshot taken before the update is untouched.
	if !before.Choice(TaskIntentClassification).IsAuto() {
		t.Fatal("in-flight snapshot was mutated by update")
	}
	if after.Choice(TaskIntentClassification).Model() != "llama3:latest" {
		t.Fatal("new snapshot missing update")
	}
	if after.Version() <= before.Version() {
		t.Fatalf("version must advance: before=%d after=%d", before.Version(), after.Version())
	}
}
